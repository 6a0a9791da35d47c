package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/greg-hellings/omnicognitor/pkg/session"
)

// ErrNotConfigured is returned when the provider has no project URL or key.
var ErrNotConfigured = errors.New("identity provider is not configured: set identity.url and identity.anon_key")

// ProviderError is an error reported by the identity provider. Its message is
// shown to the user as-is.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// GoTrueConfig configures a GoTrueProvider.
type GoTrueConfig struct {
	// URL is the project URL; requests go to {URL}/auth/v1.
	URL string
	// AnonKey is the public project key sent in the apikey header.
	AnonKey    string
	HTTPClient *http.Client
}

// GoTrueProvider signs users in and up against a GoTrue-compatible REST API.
type GoTrueProvider struct {
	client     *resty.Client
	configured bool
	now        func() time.Time
}

// NewGoTrueProvider creates a provider. A provider without URL or key returns
// ErrNotConfigured from every call.
func NewGoTrueProvider(config GoTrueConfig) *GoTrueProvider {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base := strings.TrimRight(config.URL, "/") + "/auth/v1"
	client := resty.NewWithClient(httpClient).
		SetBaseURL(base).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", config.AnonKey)
	if config.AnonKey != "" {
		client.SetAuthToken(config.AnonKey)
	}
	return &GoTrueProvider{
		client:     client,
		configured: config.URL != "" && config.AnonKey != "",
		now:        time.Now,
	}
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         gotrueUser `json:"user"`
}

// SignInWithPassword exchanges email and password for a session.
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	var tok tokenResponse
	if err := p.post(ctx, "/token", map[string]string{"grant_type": "password"}, passwordRequest{email, password}, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: "identity provider returned no access token"}
	}

	now := p.now()
	sess := &session.Session{
		Email:        tok.User.Email,
		UserID:       tok.User.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		SignedInAt:   now,
	}
	if sess.Email == "" {
		sess.Email = email
	}
	switch {
	case tok.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	slog.Debug("Signed in", "email", sess.Email, "token", session.RedactToken(sess.AccessToken))
	return sess, nil
}

// SignUp registers a new account. Confirmation is delivered by email.
func (p *GoTrueProvider) SignUp(ctx context.Context, email, password string) error {
	return p.post(ctx, "/signup", nil, passwordRequest{email, password}, nil)
}

func (p *GoTrueProvider) post(ctx context.Context, path string, query map[string]string, body, out interface{}) error {
	if !p.configured {
		return ErrNotConfigured
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParams(query).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to reach identity provider: %w", err)
	}
	if resp.IsError() {
		return &ProviderError{StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode identity provider response: %w", err)
	}
	return nil
}

// errorMessage picks the first non-empty message field of an error body.
func errorMessage(resp *resty.Response) string {
	var body struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
			if m != "" {
				return m
			}
		}
	}
	return fmt.Sprintf("identity provider returned status %d", resp.StatusCode())
}
