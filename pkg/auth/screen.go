// Package auth implements the email/password authentication screen and the
// identity provider client it delegates to.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/greg-hellings/omnicognitor/pkg/session"
)

// Mode selects whether the screen signs in or signs up.
type Mode int

const (
	SignIn Mode = iota
	SignUp
)

func (m Mode) String() string {
	if m == SignUp {
		return "signup"
	}
	return "signin"
}

const (
	SignInSuccessMessage = "Logged in successfully!"
	SignUpSuccessMessage = "Signed up successfully! Please check your email for confirmation."
	InvalidEmailMessage  = "Please enter a valid email address."
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("an authentication request is already in progress")

// ErrInvalidEmail is returned when the email field is malformed.
var ErrInvalidEmail = errors.New("invalid email address")

// IdentityProvider performs password authentication.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error)
	SignUp(ctx context.Context, email, password string) error
}

// State is a copy of the screen's form state. The password is omitted.
type State struct {
	Mode    Mode   `json:"mode"`
	Email   string `json:"email"`
	Loading bool   `json:"loading"`
	Message string `json:"message,omitempty"`
}

// Screen is the two-mode authentication form.
type Screen struct {
	provider IdentityProvider
	store    session.Store
	validate *validator.Validate

	mu       sync.Mutex
	mode     Mode
	email    string
	password string
	loading  bool
	message  string
}

// NewScreen creates a screen in sign-in mode. A successful sign-in is
// published to store when it is non-nil.
func NewScreen(provider IdentityProvider, store session.Store) *Screen {
	return &Screen{
		provider: provider,
		store:    store,
		validate: validator.New(),
	}
}

// Mode returns the current mode.
func (s *Screen) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches to m, keeping the entered fields.
func (s *Screen) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Toggle flips between sign-in and sign-up, keeping the entered fields.
func (s *Screen) Toggle() {
	s.mu.Lock()
	if s.mode == SignIn {
		s.mode = SignUp
	} else {
		s.mode = SignIn
	}
	s.mu.Unlock()
}

// Title is the heading for the current mode.
func (s *Screen) Title() string {
	if s.Mode() == SignUp {
		return "Sign Up"
	}
	return "Sign In"
}

// ActionLabel is the submit button label; it matches the title.
func (s *Screen) ActionLabel() string {
	return s.Title()
}

// TogglePrompt is the text next to the mode toggle.
func (s *Screen) TogglePrompt() string {
	if s.Mode() == SignUp {
		return "Already have an account?"
	}
	return "Don't have an account?"
}

// ToggleLabel is the label of the mode toggle, naming the other mode.
func (s *Screen) ToggleLabel() string {
	if s.Mode() == SignUp {
		return "Sign In"
	}
	return "Sign Up"
}

// SetEmail sets the email field.
func (s *Screen) SetEmail(email string) {
	s.mu.Lock()
	s.email = email
	s.mu.Unlock()
}

// SetPassword sets the password field.
func (s *Screen) SetPassword(password string) {
	s.mu.Lock()
	s.password = password
	s.mu.Unlock()
}

// State returns a copy of the form state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Mode: s.mode, Email: s.email, Loading: s.loading, Message: s.message}
}

// Submit sends the entered credentials to the identity provider for the
// current mode. The resulting status text is available from State; the
// returned error is non-nil when the request did not succeed.
func (s *Screen) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	mode, email, password := s.mode, s.email, s.password
	s.message = ""
	if err := s.validate.Var(email, "omitempty,email"); err != nil {
		s.message = InvalidEmailMessage
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	s.loading = true
	s.mu.Unlock()

	var (
		msg string
		err error
	)
	switch mode {
	case SignUp:
		err = s.provider.SignUp(ctx, email, password)
		msg = SignUpSuccessMessage
	default:
		var sess *session.Session
		sess, err = s.provider.SignInWithPassword(ctx, email, password)
		if err == nil && s.store != nil && sess != nil {
			if serr := s.store.Set(sess); serr != nil {
				slog.Warn("Failed to save session", "error", serr)
			}
		}
		msg = SignInSuccessMessage
	}
	if err != nil {
		slog.Info("Authentication failed", "mode", mode, "error", err)
		msg = err.Error()
	} else {
		slog.Info("Authentication succeeded", "mode", mode, "email", email)
	}

	s.mu.Lock()
	s.loading = false
	s.message = msg
	s.mu.Unlock()
	return err
}
