package authprovider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
	clockport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/clock"
)

type account struct {
	user     domain.User
	password string
}

// Provider is an in-memory implementation of authprovider.Provider.
// It is safe for concurrent use. Listeners are invoked outside the lock.
type Provider struct {
	mu sync.Mutex

	clk clockport.Clock
	ttl time.Duration

	accounts map[string]account // keyed by lower-cased email
	current  *domain.Session

	listeners map[int]authprovider.Listener
	nextID    int

	// RequireConfirmation makes SignUp return no session, like a provider with email confirmation on.
	RequireConfirmation bool
}

func NewProvider(clk clockport.Clock) *Provider {
	return &Provider{
		clk:       clk,
		ttl:       time.Hour,
		accounts:  make(map[string]account),
		listeners: make(map[int]authprovider.Listener),
	}
}

// AddUser registers an account directly and returns its user.
func (p *Provider) AddUser(id domain.UserID, email, password string) domain.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == "" {
		id = domain.UserID(uuid.NewString())
	}
	u := domain.User{ID: id, Email: email}
	p.accounts[strings.ToLower(email)] = account{user: u, password: password}
	return u
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	_ = ctx
	p.mu.Lock()
	acct, ok := p.accounts[strings.ToLower(email)]
	if !ok || acct.password != password {
		p.mu.Unlock()
		return domain.Session{}, authprovider.ErrInvalidCredentials
	}
	sess := p.issueLocked(acct.user)
	p.mu.Unlock()

	p.emit(authprovider.EventSignedIn, &sess)
	return sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (authprovider.SignUpResult, error) {
	_ = ctx
	p.mu.Lock()
	key := strings.ToLower(email)
	if _, ok := p.accounts[key]; ok {
		p.mu.Unlock()
		return authprovider.SignUpResult{}, authprovider.ErrUserAlreadyExists
	}
	u := domain.User{ID: domain.UserID(uuid.NewString()), Email: email}
	p.accounts[key] = account{user: u, password: password}
	if p.RequireConfirmation {
		p.mu.Unlock()
		return authprovider.SignUpResult{User: u}, nil
	}
	sess := p.issueLocked(u)
	p.mu.Unlock()

	p.emit(authprovider.EventSignedIn, &sess)
	return authprovider.SignUpResult{User: u, Session: &sess}, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	_ = ctx
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if had {
		p.emit(authprovider.EventSignedOut, nil)
	}
	return nil
}

func (p *Provider) GetSession(ctx context.Context) (domain.Session, error) {
	_ = ctx
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return domain.Session{}, authprovider.ErrNoSession
	}
	if !p.current.Expired(p.clk.Now()) {
		sess := *p.current
		p.mu.Unlock()
		return sess, nil
	}
	// Expired: refresh, mirroring a provider with auto-refresh enabled.
	sess := p.issueLocked(p.current.User)
	p.mu.Unlock()

	p.emit(authprovider.EventTokenRefreshed, &sess)
	return sess, nil
}

// Revoke drops the current session as if the provider had invalidated it remotely.
func (p *Provider) Revoke() {
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()
	if had {
		p.emit(authprovider.EventSignedOut, nil)
	}
}

func (p *Provider) OnAuthStateChange(fn authprovider.Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) issueLocked(u domain.User) domain.Session {
	sess := domain.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    p.clk.Now().Add(p.ttl),
		User:         u,
	}
	p.current = &sess
	return sess
}

func (p *Provider) emit(ev authprovider.Event, sess *domain.Session) {
	p.mu.Lock()
	ls := make([]authprovider.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()

	for _, l := range ls {
		var cp *domain.Session
		if sess != nil {
			v := *sess
			cp = &v
		}
		l(ev, cp)
	}
}
