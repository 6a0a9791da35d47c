// Package session holds the signed-in user's authentication context so that
// the auth screen, the dashboard, and the analyzer share a single identity.
//
// A Session is produced by a successful password sign-in. Passwords are never
// stored; only the tokens returned by the identity provider are kept.
//
// Stores:
//   - InMemoryStore: volatile, used by tests and the long-running web view
//   - FileStore: YAML file (0600) so separate CLI invocations share a session
//
// The state objects themselves are not synchronized; stores guard access.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSession is returned when no session has been stored.
var ErrNoSession = errors.New("no active session")

// Session is the authentication context returned by the identity provider.
type Session struct {
	Email        string    `yaml:"email"`
	UserID       string    `yaml:"userId,omitempty"`
	AccessToken  string    `yaml:"accessToken"`
	RefreshToken string    `yaml:"refreshToken,omitempty"`
	TokenType    string    `yaml:"tokenType,omitempty"`
	ExpiresAt    time.Time `yaml:"expiresAt,omitempty"`
	SignedInAt   time.Time `yaml:"signedInAt"`
}

// Expired reports whether the access token has passed its expiry. A zero
// expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store defines the contract for session persistence.
type Store interface {
	// Current returns the stored session or ErrNoSession.
	Current() (*Session, error)
	// Set replaces the stored session.
	Set(s *Session) error
	// Clear removes the stored session (idempotent).
	Clear() error
}

// InMemoryStore is a thread-safe, volatile implementation.
type InMemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Current returns a copy of the stored session.
func (m *InMemoryStore) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	cp := *m.current
	return &cp, nil
}

// Set stores a copy of s.
func (m *InMemoryStore) Set(s *Session) error {
	if s == nil {
		return errors.New("session: nil session")
	}
	cp := *s
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &cp
	return nil
}

// Clear drops the stored session.
func (m *InMemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

// FileStore persists the session as YAML on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. An empty path uses DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{path: path}
}

// Path returns the file location used by the store.
func (f *FileStore) Path() string {
	return f.path
}

// Current loads the session from disk.
func (f *FileStore) Current() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session: read failed: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: parse failed: %w", err)
	}
	if s.AccessToken == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Set persists the session atomically with 0600 permissions.
func (f *FileStore) Set(s *Session) error {
	if s == nil {
		return errors.New("session: nil session")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("session: mkdir failed: %w", err)
	}

	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session.tmp-*")
	if err != nil {
		return fmt.Errorf("session: temp create failed: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		return fmt.Errorf("session: temp write failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("session: chmod failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("session: sync failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close failed: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("session: atomic rename failed: %w", err)
	}
	return nil
}

// Clear deletes the session file; a missing file is not an error.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove failed: %w", err)
	}
	return nil
}

// DefaultPath returns the OS-specific default session file path.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "omnicognitor", "session.yaml")
}
