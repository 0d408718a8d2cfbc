package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/notify"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
)

// Store holds the current session and is the app's only subscription to auth state.
//
// It subscribes once to the provider's events (sign-in, refresh, expiry) and re-publishes
// them to OnChange listeners, skipping notifications that would not change the access token.
type Store struct {
	provider authprovider.Provider
	log      *slog.Logger

	// pubMu is held across a transition and its delivery so listeners see transitions in
	// the order they were applied. Listeners must not sign in or out synchronously.
	pubMu   sync.Mutex
	mu      sync.Mutex
	current *domain.Session

	listeners notify.Registry[*domain.Session]

	closeOnce     sync.Once
	unsubProvider func()
}

func NewStore(provider authprovider.Provider, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{provider: provider, log: log}
	s.unsubProvider = provider.OnAuthStateChange(s.onProviderEvent)
	return s
}

// Init asks the provider for an existing session. Any failure means "no session";
// it is logged and never surfaced.
func (s *Store) Init(ctx context.Context) {
	sess, err := s.provider.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, authprovider.ErrNoSession) {
			s.log.WarnContext(ctx, "session check failed; continuing signed out", slog.String("error", err.Error()))
		}
		s.set(nil)
		return
	}
	s.set(&sess)
}

// Current returns the session, if any.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Session{}, false
	}
	return *s.current, true
}

// OnChange registers fn for session changes; fn receives nil on sign-out.
func (s *Store) OnChange(fn func(*domain.Session)) (unsubscribe func()) {
	return s.listeners.Subscribe(fn)
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	email = domain.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return err
	}
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.log.InfoContext(ctx, "sign-in failed", slog.String("error", err.Error()))
		return toError(err)
	}
	s.set(&sess)
	return nil
}

// SignUp registers an account. pending is true when no session was issued because the
// provider requires email confirmation first.
func (s *Store) SignUp(ctx context.Context, email, password string) (pending bool, err error) {
	email = domain.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return false, err
	}
	res, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.log.InfoContext(ctx, "sign-up failed", slog.String("error", err.Error()))
		return false, toError(err)
	}
	if res.Session == nil {
		return true, nil
	}
	s.set(res.Session)
	return false, nil
}

// SignOut clears the local session and notifies listeners even if the remote call fails.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.WarnContext(ctx, "remote sign-out failed; cleared locally", slog.String("error", err.Error()))
	}
	s.set(nil)
}

// Close drops the provider subscription. Listeners registered with OnChange are left to
// their own unsubscribe functions.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.unsubProvider != nil {
			s.unsubProvider()
		}
	})
}

func (s *Store) onProviderEvent(ev authprovider.Event, sess *domain.Session) {
	switch ev {
	case authprovider.EventSignedOut:
		s.set(nil)
	default:
		s.set(sess)
	}
}

func (s *Store) set(sess *domain.Session) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if sameSession(s.current, sess) {
		s.mu.Unlock()
		return
	}
	var next *domain.Session
	if sess != nil {
		cp := *sess
		next = &cp
	}
	s.current = next
	s.mu.Unlock()

	var out *domain.Session
	if next != nil {
		cp := *next
		out = &cp
	}
	s.listeners.Publish(out)
}

func sameSession(a, b *domain.Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.AccessToken == b.AccessToken
}

func validateCredentials(email, password string) error {
	switch {
	case email == "" && password == "":
		return &Error{Code: CodeValidation, Message: "Email and password are required."}
	case email == "":
		return &Error{Code: CodeValidation, Message: "Email is required."}
	case password == "":
		return &Error{Code: CodeValidation, Message: "Password is required."}
	}
	return nil
}

func toError(err error) error {
	switch {
	case errors.Is(err, authprovider.ErrInvalidCredentials):
		return &Error{Code: CodeInvalidCredentials, Message: "Invalid login credentials", Err: err}
	case errors.Is(err, authprovider.ErrUserAlreadyExists):
		return &Error{Code: CodeUserExists, Message: "User already registered", Err: err}
	}
	return &Error{Code: CodeAuthFailed, Message: err.Error(), Err: err}
}
