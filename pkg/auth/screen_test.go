package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greg-hellings/omnicognitor/pkg/session"
)

type fakeProvider struct {
	signIns []string
	signUps []string
	sess    *session.Session
	err     error
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*session.Session, error) {
	f.signIns = append(f.signIns, email+"/"+password)
	return f.sess, f.err
}

func (f *fakeProvider) SignUp(_ context.Context, email, password string) error {
	f.signUps = append(f.signUps, email+"/"+password)
	return f.err
}

func TestToggleKeepsFields(t *testing.T) {
	s := NewScreen(&fakeProvider{}, nil)
	s.SetEmail("a@b.co")
	s.SetPassword("pw")

	assert.Equal(t, SignIn, s.Mode())
	assert.Equal(t, "Sign In", s.Title())
	assert.Equal(t, "Sign In", s.ActionLabel())
	assert.Equal(t, "Don't have an account?", s.TogglePrompt())
	assert.Equal(t, "Sign Up", s.ToggleLabel())

	s.Toggle()
	assert.Equal(t, SignUp, s.Mode())
	assert.Equal(t, "Sign Up", s.Title())
	assert.Equal(t, "Already have an account?", s.TogglePrompt())
	assert.Equal(t, "Sign In", s.ToggleLabel())
	assert.Equal(t, "a@b.co", s.State().Email)

	s.Toggle()
	assert.Equal(t, SignIn, s.Mode())
}

func TestSubmitSignInStoresSession(t *testing.T) {
	provider := &fakeProvider{sess: &session.Session{Email: "a@b.co", AccessToken: "tok"}}
	store := session.NewInMemoryStore()
	s := NewScreen(provider, store)
	s.SetEmail("a@b.co")
	s.SetPassword("secret")

	require.NoError(t, s.Submit(context.Background()))

	assert.Equal(t, []string{"a@b.co/secret"}, provider.signIns)
	assert.Empty(t, provider.signUps)
	st := s.State()
	assert.Equal(t, SignInSuccessMessage, st.Message)
	assert.False(t, st.Loading)

	got, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
}

func TestSubmitSignUp(t *testing.T) {
	provider := &fakeProvider{}
	store := session.NewInMemoryStore()
	s := NewScreen(provider, store)
	s.SetMode(SignUp)
	s.SetEmail("new@b.co")
	s.SetPassword("pw")

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, []string{"new@b.co/pw"}, provider.signUps)
	assert.Equal(t, SignUpSuccessMessage, s.State().Message)

	_, err := store.Current()
	assert.ErrorIs(t, err, session.ErrNoSession, "sign-up does not create a session")
}

func TestSubmitShowsProviderErrorVerbatim(t *testing.T) {
	provider := &fakeProvider{err: &ProviderError{StatusCode: 400, Message: "Invalid login credentials"}}
	store := session.NewInMemoryStore()
	s := NewScreen(provider, store)
	s.SetEmail("a@b.co")
	s.SetPassword("wrong")

	err := s.Submit(context.Background())
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid login credentials", s.State().Message)

	_, err = store.Current()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSubmitValidatesEmailShape(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		wantCalls int
		wantErr   error
	}{
		{"valid", "user@example.com", 1, nil},
		{"empty passes through", "", 1, nil},
		{"malformed", "not-an-email", 0, ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{sess: &session.Session{AccessToken: "x"}}
			s := NewScreen(provider, nil)
			s.SetEmail(tt.email)

			err := s.Submit(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, InvalidEmailMessage, s.State().Message)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, provider.signIns, tt.wantCalls)
		})
	}
}

func TestSubmitClearsPreviousMessage(t *testing.T) {
	provider := &fakeProvider{err: &ProviderError{Message: "nope"}}
	s := NewScreen(provider, nil)
	s.SetEmail("a@b.co")
	require.Error(t, s.Submit(context.Background()))
	assert.Equal(t, "nope", s.State().Message)

	provider.err = nil
	provider.sess = &session.Session{AccessToken: "t"}
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, SignInSuccessMessage, s.State().Message)
}
