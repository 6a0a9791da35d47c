package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// isolateEnv keeps host configuration and sessions out of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, name := range []string{"VITE_API_URL", "VITE_SUPABASE_URL", "VITE_SUPABASE_ANON_KEY"} {
		t.Setenv(name, "")
	}
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "OMNICOGNITOR_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

// newBackend stands in for the data API, the analysis service, and the
// identity provider on a single server.
func newBackend(t *testing.T, failStats bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if failStats {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"success":true,"stats":{"users":42,"platforms":1,"workspaces":1,"messages":"1234","conversations":7}}`)
	})
	mux.HandleFunc("/api/platforms", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"id":1,"name":"OpenAI","type":"llm","is_enabled":true}]}`)
	})
	mux.HandleFunc("/api/workspaces", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"id":"w1","name":"Research","is_public":false}]}`)
	})
	mux.HandleFunc("/m23m/analyze", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprintf(w, `{"success":true,"data":{"summary":"About %s","publications":[{"title":"Paper A","abstract":"Lorem ipsum"}]}}`, body.Query)
	})
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "hunter2" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"access-token-123456","token_type":"bearer","expires_in":3600,"user":{"id":"u-1","email":%q}}`, body.Email)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeTempConfig writes a config file pointing every endpoint at srv.
func writeTempConfig(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
api:
  base_url: %[1]s/api
analyzer:
  base_url: %[1]s
identity:
  url: %[1]s
  anon_key: anon
session:
  path: %[2]s
`, srv.URL, filepath.Join(dir, "session.yaml"))
	path := filepath.Join(dir, "omnicognitor.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

// executeCommand runs root with args, capturing stdout.
func executeCommand(root *cobra.Command, stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(newRootCmd(), "", "version")
	if err != nil {
		t.Fatalf("command returned error: %v", err)
	}
	expectContains(t, out, "OmniCognitor version: dev", "version output")
}

func TestDashboardOnce(t *testing.T) {
	isolateEnv(t)
	srv := newBackend(t, false)
	cfg := writeTempConfig(t, srv)

	out, err := executeCommand(newRootCmd(), "", "dashboard", "--config", cfg, "--once", "--no-color", "--select", "w1")
	if err != nil {
		t.Fatalf("command returned error: %v\nOutput: %s", err, out)
	}
	expectContains(t, out, "TELsTP OmniCognitor", "title missing")
	expectContains(t, out, "1234", "message count missing")
	expectContains(t, out, "OpenAI", "platform missing")
	expectContains(t, out, "Research", "workspace missing")
	expectContains(t, out, "▶", "selected workspace marker missing")
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI sequences with --no-color")
	}
}

func TestDashboardOnceReportsFailure(t *testing.T) {
	isolateEnv(t)
	srv := newBackend(t, true)
	cfg := writeTempConfig(t, srv)

	out, err := executeCommand(newRootCmd(), "", "dashboard", "--config", cfg, "--once", "--no-color")
	if err == nil {
		t.Fatalf("expected refresh failure, got success. Output: %s", out)
	}
	expectContains(t, err.Error(), "status code 500", "error should carry the status")
	expectContains(t, out, "Error: request failed with status code 500", "error banner missing")
}

func TestAnalyzeCommand(t *testing.T) {
	isolateEnv(t)
	srv := newBackend(t, false)
	cfg := writeTempConfig(t, srv)

	out, err := executeCommand(newRootCmd(), "", "analyze", "--config", cfg, "--no-color", "quantum", "entanglement")
	if err != nil {
		t.Fatalf("command returned error: %v\nOutput: %s", err, out)
	}
	expectContains(t, out, "About quantum entanglement", "summary missing")
	expectContains(t, out, "Paper A: Lorem ipsum...", "publication missing")
}

func TestAuthSignInStatusSignOut(t *testing.T) {
	isolateEnv(t)
	srv := newBackend(t, false)
	cfg := writeTempConfig(t, srv)

	// Password is read from stdin when the flag is omitted.
	out, err := executeCommand(newRootCmd(), "hunter2\n", "auth", "signin", "--config", cfg, "--no-color", "--email", "a@b.co")
	if err != nil {
		t.Fatalf("signin returned error: %v\nOutput: %s", err, out)
	}
	expectContains(t, out, "Logged in successfully!", "success message missing")

	out, err = executeCommand(newRootCmd(), "", "auth", "status", "--config", cfg)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	expectContains(t, out, "Signed in as a@b.co", "session email missing")
	if strings.Contains(out, "access-token-123456") {
		t.Errorf("status output leaked the full access token")
	}

	out, err = executeCommand(newRootCmd(), "", "auth", "signout", "--config", cfg)
	if err != nil {
		t.Fatalf("signout returned error: %v", err)
	}
	expectContains(t, out, "Signed out", "signout message missing")

	out, err = executeCommand(newRootCmd(), "", "auth", "status", "--config", cfg)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	expectContains(t, out, "Not signed in", "session should be cleared")
}

func TestAuthSignInFailure(t *testing.T) {
	isolateEnv(t)
	srv := newBackend(t, false)
	cfg := writeTempConfig(t, srv)

	out, err := executeCommand(newRootCmd(), "", "auth", "signin", "--config", cfg, "--no-color", "--email", "a@b.co", "--password", "wrong")
	if err == nil {
		t.Fatalf("expected signin failure. Output: %s", out)
	}
	expectContains(t, out, "Invalid login credentials", "provider message missing")
	expectContains(t, err.Error(), "signin failed", "error should name the mode")
}

// Helper: minimal contains assertion
func expectContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("%s: expected %q to contain %q", msg, s, substr)
	}
}
