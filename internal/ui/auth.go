package ui

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/app/session"
)

type AuthMode string

const (
	AuthLogin  AuthMode = "login"
	AuthSignup AuthMode = "signup"
)

// SignedUpMessage accompanies the "Signed up" alert.
const SignedUpMessage = "Check your email if confirmation is enabled."

type AuthScreen struct {
	session *session.Store
	alert   func(Alert)

	mu   sync.Mutex
	mode AuthMode
}

func newAuthScreen(s *session.Store, alert func(Alert)) *AuthScreen {
	return &AuthScreen{session: s, alert: alert, mode: AuthLogin}
}

func (s *AuthScreen) Mode() AuthMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *AuthScreen) SetMode(m AuthMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *AuthScreen) ToggleMode() AuthMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == AuthLogin {
		s.mode = AuthSignup
	} else {
		s.mode = AuthLogin
	}
	return s.mode
}

func (s *AuthScreen) SubmitLabel() string {
	if s.Mode() == AuthSignup {
		return "Sign up"
	}
	return "Login"
}

func (s *AuthScreen) SwitchLabel() string {
	if s.Mode() == AuthSignup {
		return "Have an account? Login"
	}
	return "Need an account? Sign up"
}

// Submit logs in or signs up depending on the mode. Failures raise an "Auth error" alert;
// a sign-up raises "Signed up" whether or not a session was issued.
func (s *AuthScreen) Submit(ctx context.Context, email, password string) bool {
	if s.Mode() == AuthLogin {
		if err := s.session.SignIn(ctx, email, password); err != nil {
			s.alert(Alert{Title: AlertAuthError, Message: err.Error()})
			return false
		}
		return true
	}

	if _, err := s.session.SignUp(ctx, email, password); err != nil {
		s.alert(Alert{Title: AlertAuthError, Message: err.Error()})
		return false
	}
	s.alert(Alert{Title: AlertSignedUp, Message: SignedUpMessage})
	return true
}

func (s *AuthScreen) reset() { s.SetMode(AuthLogin) }
