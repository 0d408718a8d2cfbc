package authprovider

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Event names an auth state transition reported by the provider.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener receives auth state changes. sess is nil after sign-out or expiry.
type Listener func(ev Event, sess *domain.Session)

// SignUpResult reports the outcome of a sign-up.
// Session is nil when the provider requires email confirmation before issuing one.
type SignUpResult struct {
	User    domain.User
	Session *domain.Session
}

// Provider is the remote auth collaborator. Session persistence is the provider's
// responsibility; the client only hands it a securestore.Store.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error)
	SignUp(ctx context.Context, email, password string) (SignUpResult, error)
	SignOut(ctx context.Context) error

	// GetSession returns the current session, refreshing it if it has expired.
	// ErrNoSession is returned when nobody is signed in.
	GetSession(ctx context.Context) (domain.Session, error)

	// OnAuthStateChange registers a listener and returns its unsubscribe function.
	OnAuthStateChange(fn Listener) (unsubscribe func())
}
