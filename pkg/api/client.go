// Package api is the HTTP client for the OmniCognitor backend. It wraps a
// resty client configured with a base URL and an optional bearer credential
// and decodes the `{success, data|stats, error|message}` envelopes returned
// by every endpoint.
//
// Failures are surfaced immediately: there is no retry and no client-side
// timeout beyond what the caller's context imposes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const maxErrorBody = 200

// Config holds the settings for a Client.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string

	// Credentials supplies the bearer token. It is consulted on every request;
	// a nil source, or one that returns an error, sends no Authorization header.
	Credentials oauth2.TokenSource

	// UserAgent is sent with every request when set.
	UserAgent string

	// HTTPClient overrides the underlying transport. Nil uses a default client
	// with no timeout.
	HTTPClient *http.Client
}

// Client issues requests against a single base URL.
type Client struct {
	rest   *resty.Client
	config Config
}

// NewClient creates a new client with the provided configuration
func NewClient(config Config) *Client {
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if config.UserAgent != "" {
		rc.SetHeader("User-Agent", config.UserAgent)
	}

	if config.Credentials != nil {
		src := config.Credentials
		rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			tok, err := src.Token()
			if err != nil || tok == nil || tok.AccessToken == "" {
				return nil
			}
			r.SetAuthScheme(tok.Type())
			r.SetAuthToken(tok.AccessToken)
			return nil
		})
	}

	return &Client{rest: rc, config: config}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Get issues GET {base}{path} and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues POST {base}{path} with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	slog.Debug("Backend request", "method", method, "baseURL", c.config.BaseURL, "path", path)

	resp, err := req.Execute(method, path)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		slog.Warn("Backend rejected credentials", "method", method, "path", path)
		return &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Err:        ErrUnauthorized,
		}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       truncateBody(resp.String()),
			Err:        errors.New(http.StatusText(resp.StatusCode())),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (*StatsEnvelope, error) {
	var env StatsEnvelope
	if err := c.Get(ctx, "/stats", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Platforms fetches GET /platforms.
func (c *Client) Platforms(ctx context.Context) (*ListEnvelope[Platform], error) {
	var env ListEnvelope[Platform]
	if err := c.Get(ctx, "/platforms", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Workspaces fetches GET /workspaces.
func (c *Client) Workspaces(ctx context.Context) (*ListEnvelope[Workspace], error) {
	var env ListEnvelope[Workspace]
	if err := c.Get(ctx, "/workspaces", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Analyze posts a research query to POST /m23m/analyze.
func (c *Client) Analyze(ctx context.Context, query string) (*AnalysisEnvelope, error) {
	var env AnalysisEnvelope
	if err := c.Post(ctx, "/m23m/analyze", AnalyzeRequest{Query: query}, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxErrorBody {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxErrorBody]) + "…"
}
