package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoCredential is returned by a bearer source that has nothing to send.
// Callers treat it as "send the request unauthenticated".
var ErrNoCredential = errors.New("no bearer credential available")

// BearerSource resolves the bearer credential for backend requests.
// Lookup order:
//  1. Explicitly configured API token
//  2. Access token of the current (unexpired) session
//  3. Identity provider anon key, when enabled
//
// It implements oauth2.TokenSource and is re-evaluated on every call, so a
// sign-in that happens while a view is mounted is picked up on the next
// request.
type BearerSource struct {
	Static  string
	Store   Store
	AnonKey string

	now func() time.Time
}

var _ oauth2.TokenSource = (*BearerSource)(nil)

// NewBearerSource constructs a BearerSource. Empty values are skipped.
func NewBearerSource(static string, store Store, anonKey string) *BearerSource {
	return &BearerSource{
		Static:  strings.TrimSpace(static),
		Store:   store,
		AnonKey: strings.TrimSpace(anonKey),
		now:     time.Now,
	}
}

// Token implements oauth2.TokenSource.
func (b *BearerSource) Token() (*oauth2.Token, error) {
	if b.Static != "" {
		return &oauth2.Token{AccessToken: b.Static, TokenType: "Bearer"}, nil
	}

	if b.Store != nil {
		s, err := b.Store.Current()
		switch {
		case err == nil:
			now := time.Now
			if b.now != nil {
				now = b.now
			}
			if !s.Expired(now()) {
				return &oauth2.Token{
					AccessToken:  s.AccessToken,
					RefreshToken: s.RefreshToken,
					TokenType:    "Bearer",
					Expiry:       s.ExpiresAt,
				}, nil
			}
		case !errors.Is(err, ErrNoSession):
			return nil, fmt.Errorf("session store failure: %w", err)
		}
	}

	if b.AnonKey != "" {
		return &oauth2.Token{AccessToken: b.AnonKey, TokenType: "Bearer"}, nil
	}

	return nil, ErrNoCredential
}

// RedactToken safely redacts a token for logging purposes.
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}
