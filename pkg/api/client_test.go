package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStats(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/functions/v1/api/stats", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"stats":{"users":12,"platforms":"3","workspaces":4.0,"messages":-7,"conversations":null}}`)
	})

	c := NewClient(Config{BaseURL: srv.URL + "/functions/v1/api/"})
	env, err := c.Stats(context.Background())
	require.NoError(t, err)
	require.True(t, env.Success)
	require.NotNil(t, env.Stats)

	assert.Equal(t, Counter(12), env.Stats.Users)
	assert.Equal(t, Counter(3), env.Stats.Platforms, "numeric strings are coerced")
	assert.Equal(t, Counter(4), env.Stats.Workspaces)
	assert.Equal(t, Counter(0), env.Stats.Messages, "negatives clamp to zero")
	assert.Equal(t, Counter(0), env.Stats.Conversations, "null defaults to zero")
}

func TestClientListEndpoints(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/platforms":
			_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"name":"GPT","type":"llm","is_enabled":true},{"id":"p-2","name":"Claude","type":"llm","is_enabled":false}]}`)
		case "/workspaces":
			_, _ = io.WriteString(w, `{"success":true,"data":[{"id":"w1","name":"Research","description":"Main","is_public":true}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(Config{BaseURL: srv.URL})

	platforms, err := c.Platforms(context.Background())
	require.NoError(t, err)
	require.Len(t, platforms.Data, 2)
	assert.Equal(t, ID("1"), platforms.Data[0].ID)
	assert.Equal(t, ID("p-2"), platforms.Data[1].ID)
	assert.True(t, platforms.Data[0].Enabled)
	assert.False(t, platforms.Data[1].Enabled)

	workspaces, err := c.Workspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, workspaces.Data, 1)
	assert.Equal(t, Workspace{ID: "w1", Name: "Research", Description: "Main", Public: true}, workspaces.Data[0])
}

func TestClientAnalyzePostsQuery(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/m23m/analyze", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var body AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "quantum entanglement", body.Query)

		_, _ = io.WriteString(w, `{"success":true,"data":{"summary":"S","publications":[{"title":"Paper A","abstract":"Lorem ipsum"}]}}`)
	})

	c := NewClient(Config{BaseURL: srv.URL})
	env, err := c.Analyze(context.Background(), "quantum entanglement")
	require.NoError(t, err)
	require.True(t, env.Success)
	require.NotNil(t, env.Data)
	assert.Equal(t, "S", env.Data.Summary)
	assert.Equal(t, []Publication{{Title: "Paper A", Abstract: "Lorem ipsum"}}, env.Data.Publications)
}

func TestClientApplicationFailureIsNotAnError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"quota exceeded"}`)
	})

	env, err := NewClient(Config{BaseURL: srv.URL}).Analyze(context.Background(), "q")
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, "quota exceeded", env.Message)
}

func TestClientBearerCredential(t *testing.T) {
	var got string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	})

	c := NewClient(Config{
		BaseURL:     srv.URL,
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "anon-key"}),
	})
	_, err := c.Platforms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer anon-key", got)
}

type erroringSource struct{}

func (erroringSource) Token() (*oauth2.Token, error) { return nil, errors.New("no token") }

func TestClientCredentialErrorSendsNoHeader(t *testing.T) {
	var got string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	})

	_, err := NewClient(Config{BaseURL: srv.URL, Credentials: erroringSource{}}).Workspaces(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClientUnauthorized(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid JWT"}`)
	})

	c := NewClient(Config{
		BaseURL:     srv.URL,
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "bad"}),
	})
	_, err := c.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, ErrUnauthorized.Error(), err.Error())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
}

func TestClientServerErrorIsTransportFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})

	_, err := NewClient(Config{BaseURL: srv.URL}).Stats(context.Background())
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}).Stats(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClientContextCanceled(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Config{BaseURL: srv.URL}).Stats(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientMalformedJSON(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	})

	_, err := NewClient(Config{BaseURL: srv.URL}).Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
