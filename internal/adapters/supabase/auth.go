package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
	clockport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/clock"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

// SessionStorageKey is the secure-storage key holding the persisted session.
const SessionStorageKey = "sb-session"

// Sessions this close to expiry are refreshed before use.
const expiryMargin = 30 * time.Second

// TokenVerifier checks an access token locally (see jwtverifier).
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (jwtverifier.Claims, error)
}

type AuthOptions struct {
	Clock clockport.Clock
	// Verifier, when set, validates persisted sessions offline instead of asking /auth/v1/user.
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Auth implements authprovider.Provider against the hosted auth endpoints.
//
// The session is persisted to the secure store under SessionStorageKey and restored lazily
// on the first GetSession. Expired sessions are refreshed with the refresh token.
type Auth struct {
	client   *Client
	store    securestore.Store
	clk      clockport.Clock
	verifier TokenVerifier
	log      *slog.Logger

	// opMu serializes network-backed state transitions (sign-in, refresh, sign-out).
	opMu sync.Mutex

	mu        sync.Mutex
	loaded    bool
	current   *domain.Session
	listeners map[int]authprovider.Listener
	nextID    int
}

var _ authprovider.Provider = (*Auth)(nil)

func NewAuth(client *Client, store securestore.Store, opts AuthOptions) *Auth {
	clk := opts.Clock
	if clk == nil {
		clk = systemClock{}
	}
	log := opts.Logger
	if log == nil {
		log = client.log
	}
	return &Auth{
		client:    client,
		store:     store,
		clk:       clk,
		verifier:  opts.Verifier,
		log:       log,
		listeners: make(map[int]authprovider.Listener),
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u userDTO) domain() domain.User {
	return domain.User{ID: domain.UserID(u.ID), Email: u.Email}
}

type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
	ExpiresAt    int64   `json:"expires_at"`
	RefreshToken string  `json:"refresh_token"`
	User         userDTO `json:"user"`
}

func (tr tokenResponse) session(now time.Time) (domain.Session, error) {
	if tr.AccessToken == "" || tr.User.ID == "" {
		return domain.Session{}, errors.New("supabase: token response without access token or user")
	}
	var exp time.Time
	switch {
	case tr.ExpiresAt > 0:
		exp = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		exp = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    exp,
		User:         tr.User.domain(),
	}, nil
}

// With email confirmation on, sign-up answers with the bare user object.
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

type storedSession struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresAt    int64   `json:"expires_at"`
	User         userDTO `json:"user"`
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (domain.Session, error) {
	var n *notice
	a.opMu.Lock()
	defer func() {
		a.opMu.Unlock()
		a.notify(n)
	}()

	var tr tokenResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return domain.Session{}, mapAuthError(err)
	}
	sess, err := tr.session(a.clk.Now())
	if err != nil {
		return domain.Session{}, err
	}
	a.replace(ctx, &sess)
	n = &notice{authprovider.EventSignedIn, &sess}
	return sess, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (authprovider.SignUpResult, error) {
	var n *notice
	a.opMu.Lock()
	defer func() {
		a.opMu.Unlock()
		a.notify(n)
	}()

	var sr signUpResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]string{"email": email, "password": password},
	}, &sr)
	if err != nil {
		return authprovider.SignUpResult{}, mapAuthError(err)
	}

	if sr.AccessToken == "" {
		u := sr.tokenResponse.User
		if u.ID == "" {
			u = userDTO{ID: sr.ID, Email: sr.Email}
		}
		return authprovider.SignUpResult{User: u.domain()}, nil
	}
	sess, err := sr.tokenResponse.session(a.clk.Now())
	if err != nil {
		return authprovider.SignUpResult{}, err
	}
	a.replace(ctx, &sess)
	n = &notice{authprovider.EventSignedIn, &sess}
	return authprovider.SignUpResult{User: sess.User, Session: &sess}, nil
}

// SignOut revokes the session remotely and always clears it locally.
// A remote failure is returned after the local state has been cleared.
func (a *Auth) SignOut(ctx context.Context) error {
	var n *notice
	a.opMu.Lock()
	defer func() {
		a.opMu.Unlock()
		a.notify(n)
	}()

	a.loadOnce(ctx)
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return nil
	}

	remoteErr := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: cur.AccessToken,
	}, nil)
	if ae, ok := AsAPIError(remoteErr); ok && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusNotFound) {
		// Already gone server-side.
		remoteErr = nil
	}

	a.replace(ctx, nil)
	n = &notice{authprovider.EventSignedOut, nil}
	if remoteErr != nil {
		return fmt.Errorf("sign out: %w", remoteErr)
	}
	return nil
}

func (a *Auth) GetSession(ctx context.Context) (domain.Session, error) {
	var n *notice
	a.opMu.Lock()
	defer func() {
		a.opMu.Unlock()
		a.notify(n)
	}()

	a.loadOnce(ctx)
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return domain.Session{}, authprovider.ErrNoSession
	}
	if !cur.Expired(a.clk.Now().Add(expiryMargin)) {
		return *cur, nil
	}

	var tr tokenResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": cur.RefreshToken},
	}, &tr)
	if err != nil {
		if ae, ok := AsAPIError(err); ok && refreshRejected(ae) {
			// The refresh token was rejected: the session is over.
			a.log.InfoContext(ctx, "session refresh rejected", slog.String("error", err.Error()))
			a.replace(ctx, nil)
			n = &notice{authprovider.EventSignedOut, nil}
			return domain.Session{}, authprovider.ErrNoSession
		}
		// Outages keep the stored session so a later call can retry the refresh.
		a.log.WarnContext(ctx, "session refresh failed", slog.String("error", err.Error()))
		return domain.Session{}, fmt.Errorf("refresh session: %w", err)
	}
	sess, err := tr.session(a.clk.Now())
	if err != nil {
		return domain.Session{}, err
	}
	a.replace(ctx, &sess)
	n = &notice{authprovider.EventTokenRefreshed, &sess}
	return sess, nil
}

// refreshRejected reports whether the auth service refused the refresh token itself, as
// opposed to failing to answer.
func refreshRejected(ae *APIError) bool {
	switch ae.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch ae.ErrorCode {
	case "invalid_grant", "refresh_token_not_found", "refresh_token_already_used", "session_not_found":
		return true
	}
	return ae.Code == "invalid_grant"
}

// FetchUser asks the auth service who accessToken belongs to.
func (a *Auth) FetchUser(ctx context.Context, accessToken string) (domain.User, error) {
	var u userDTO
	if err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &u); err != nil {
		return domain.User{}, err
	}
	return u.domain(), nil
}

func (a *Auth) OnAuthStateChange(fn authprovider.Listener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// loadOnce restores the persisted session on first use. Callers hold opMu.
func (a *Auth) loadOnce(ctx context.Context) {
	a.mu.Lock()
	if a.loaded {
		a.mu.Unlock()
		return
	}
	a.loaded = true
	a.mu.Unlock()

	raw, ok, err := a.store.Get(ctx, SessionStorageKey)
	if err != nil {
		a.log.WarnContext(ctx, "read persisted session failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	var ss storedSession
	if err := json.Unmarshal([]byte(raw), &ss); err != nil || ss.AccessToken == "" || ss.User.ID == "" {
		a.log.WarnContext(ctx, "discarding unreadable persisted session")
		a.forget(ctx)
		return
	}
	sess := domain.Session{
		AccessToken:  ss.AccessToken,
		RefreshToken: ss.RefreshToken,
		TokenType:    ss.TokenType,
		User:         ss.User.domain(),
	}
	if ss.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(ss.ExpiresAt, 0)
	}

	if !sess.Expired(a.clk.Now().Add(expiryMargin)) && !a.stillValid(ctx, sess) {
		a.forget(ctx)
		return
	}

	a.mu.Lock()
	a.current = &sess
	a.mu.Unlock()
}

// stillValid checks an unexpired persisted token. Without a verifier it asks the auth
// service; transport errors keep the session so the client works offline.
func (a *Auth) stillValid(ctx context.Context, sess domain.Session) bool {
	if a.verifier != nil {
		claims, err := a.verifier.Verify(ctx, sess.AccessToken)
		if err != nil || claims.Subject != string(sess.User.ID) {
			a.log.InfoContext(ctx, "persisted session failed verification")
			return false
		}
		return true
	}
	_, err := a.FetchUser(ctx, sess.AccessToken)
	if ae, ok := AsAPIError(err); ok && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden) {
		a.log.InfoContext(ctx, "persisted session rejected by auth service", slog.Int("status", ae.Status))
		return false
	}
	return true
}

// replace swaps the in-memory session and persists it; nil clears both.
// Storage failures are logged: the in-memory session stays authoritative for this run.
func (a *Auth) replace(ctx context.Context, sess *domain.Session) {
	a.mu.Lock()
	a.loaded = true
	if sess == nil {
		a.current = nil
	} else {
		cp := *sess
		a.current = &cp
	}
	a.mu.Unlock()

	if sess == nil {
		a.forget(ctx)
		return
	}
	ss := storedSession{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
		User:         userDTO{ID: string(sess.User.ID), Email: sess.User.Email},
	}
	if !sess.ExpiresAt.IsZero() {
		ss.ExpiresAt = sess.ExpiresAt.Unix()
	}
	b, err := json.Marshal(ss)
	if err != nil {
		a.log.ErrorContext(ctx, "encode session failed", slog.String("error", err.Error()))
		return
	}
	if err := a.store.Set(ctx, SessionStorageKey, string(b)); err != nil {
		a.log.WarnContext(ctx, "persist session failed", slog.String("error", err.Error()))
	}
}

func (a *Auth) forget(ctx context.Context) {
	if err := a.store.Delete(ctx, SessionStorageKey); err != nil {
		a.log.WarnContext(ctx, "delete persisted session failed", slog.String("error", err.Error()))
	}
}

// notice is an auth event queued while opMu is held and delivered after it is released,
// so listeners may call back into Auth.
type notice struct {
	ev   authprovider.Event
	sess *domain.Session
}

func (a *Auth) notify(n *notice) {
	if n != nil {
		a.emit(n.ev, n.sess)
	}
}

func (a *Auth) emit(ev authprovider.Event, sess *domain.Session) {
	a.mu.Lock()
	ls := make([]authprovider.Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		ls = append(ls, l)
	}
	a.mu.Unlock()

	for _, l := range ls {
		var cp *domain.Session
		if sess != nil {
			v := *sess
			cp = &v
		}
		l(ev, cp)
	}
}

func mapAuthError(err error) error {
	ae, ok := AsAPIError(err)
	if !ok {
		return err
	}
	msg := strings.ToLower(ae.Message)
	switch {
	case ae.ErrorCode == "invalid_credentials",
		ae.ErrorCode == "invalid_grant" && strings.Contains(msg, "credentials"):
		return authprovider.ErrInvalidCredentials
	case ae.ErrorCode == "user_already_exists",
		strings.Contains(msg, "already registered"):
		return authprovider.ErrUserAlreadyExists
	}
	return err
}
