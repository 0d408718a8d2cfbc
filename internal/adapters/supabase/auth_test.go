package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	memclock "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/clock"
	memsecurestore "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/securestore"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase/supabasetest"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwks_testutil"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/config"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
)

type harness struct {
	fake  *supabasetest.Server
	store *memsecurestore.Store
	clk   *memclock.ManualClock
	auth  *supabase.Auth
}

func newHarness(t *testing.T, opts ...supabasetest.Option) *harness {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC))
	fake := supabasetest.NewServer(t, append([]supabasetest.Option{supabasetest.WithClock(clk.Now)}, opts...)...)
	fake.AddUser("u1", "jane@example.com", "secret")
	h := &harness{fake: fake, store: memsecurestore.NewStore(), clk: clk}
	h.auth = h.newAuth(t, nil)
	return h
}

// newAuth builds a fresh provider over the same storage, as a restarted client would.
func (h *harness) newAuth(t *testing.T, verifier supabase.TokenVerifier) *supabase.Auth {
	t.Helper()
	client, err := supabase.NewClient(h.fake.URL(), h.fake.AnonKey, supabase.Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return supabase.NewAuth(client, h.store, supabase.AuthOptions{Clock: h.clk, Verifier: verifier})
}

type eventLog struct {
	mu  sync.Mutex
	evs []authprovider.Event
}

func (l *eventLog) listen(ev authprovider.Event, _ *domain.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev)
}

func (l *eventLog) get() []authprovider.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]authprovider.Event(nil), l.evs...)
}

func TestAuth_SignInPersistsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	var log eventLog
	defer h.auth.OnAuthStateChange(log.listen)()

	sess, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if sess.User.ID != "u1" || sess.User.Email != "jane@example.com" || sess.AccessToken == "" {
		t.Fatalf("sess=%+v", sess)
	}
	if !sess.ExpiresAt.Equal(h.clk.Now().Add(time.Hour)) {
		t.Fatalf("ExpiresAt=%v", sess.ExpiresAt)
	}

	raw, ok, err := h.store.Get(ctx, supabase.SessionStorageKey)
	if err != nil || !ok {
		t.Fatalf("persisted session missing: ok=%v err=%v", ok, err)
	}
	var stored map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored session is not JSON: %v", err)
	}
	if stored["access_token"] != sess.AccessToken || stored["refresh_token"] != sess.RefreshToken {
		t.Fatalf("stored=%v", stored)
	}

	if got := log.get(); len(got) != 1 || got[0] != authprovider.EventSignedIn {
		t.Fatalf("events=%v", got)
	}
}

func TestAuth_SignInInvalidCredentials(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.auth.SignInWithPassword(context.Background(), "jane@example.com", "nope")
	if !errors.Is(err, authprovider.ErrInvalidCredentials) {
		t.Fatalf("err=%v, want ErrInvalidCredentials", err)
	}
	if _, err := h.auth.GetSession(context.Background()); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("GetSession err=%v", err)
	}
}

func TestAuth_SignUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.SignUp(ctx, "new@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Session == nil || res.User.Email != "new@example.com" {
		t.Fatalf("res=%+v", res)
	}

	if _, err := h.auth.SignUp(ctx, "jane@example.com", "pw"); !errors.Is(err, authprovider.ErrUserAlreadyExists) {
		t.Fatalf("err=%v, want ErrUserAlreadyExists", err)
	}
}

func TestAuth_SignUpPendingConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.fake.SetRequireConfirmation(true)

	res, err := h.auth.SignUp(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Session != nil {
		t.Fatalf("expected no session, got %+v", res.Session)
	}
	if res.User.ID == "" || res.User.Email != "new@example.com" {
		t.Fatalf("user=%+v", res.User)
	}
	if _, ok, _ := h.store.Get(context.Background(), supabase.SessionStorageKey); ok {
		t.Fatalf("nothing should be persisted before confirmation")
	}
}

func TestAuth_RestoresPersistedSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	restarted := h.newAuth(t, nil)
	got, err := restarted.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AccessToken != first.AccessToken || got.User.ID != "u1" {
		t.Fatalf("restored=%+v", got)
	}
	if n := h.fake.Hits(http.MethodGet, "/auth/v1/user"); n != 1 {
		t.Fatalf("expected one /user check, got %d", n)
	}
}

func TestAuth_RevokedPersistedSessionIsDropped(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	h.fake.RevokeAll()

	restarted := h.newAuth(t, nil)
	if _, err := restarted.GetSession(ctx); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
	if _, ok, _ := h.store.Get(ctx, supabase.SessionStorageKey); ok {
		t.Fatalf("revoked session should be deleted from storage")
	}
}

func TestAuth_UnreadablePersistedSessionIsDropped(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	if err := h.store.Set(ctx, supabase.SessionStorageKey, "{not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := h.auth.GetSession(ctx); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
	if _, ok, _ := h.store.Get(ctx, supabase.SessionStorageKey); ok {
		t.Fatalf("unreadable session should be deleted")
	}
}

func TestAuth_GetSessionRefreshesExpired(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	var log eventLog
	defer h.auth.OnAuthStateChange(log.listen)()

	h.clk.Advance(59*time.Minute + 45*time.Second) // inside the refresh margin
	got, err := h.auth.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AccessToken == first.AccessToken || got.RefreshToken == first.RefreshToken {
		t.Fatalf("expected rotated tokens")
	}
	if evs := log.get(); len(evs) != 1 || evs[0] != authprovider.EventTokenRefreshed {
		t.Fatalf("events=%v", evs)
	}

	raw, _, _ := h.store.Get(ctx, supabase.SessionStorageKey)
	var stored map[string]any
	_ = json.Unmarshal([]byte(raw), &stored)
	if stored["access_token"] != got.AccessToken {
		t.Fatalf("refreshed session not persisted")
	}
}

func TestAuth_RefreshRejectedSignsOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	var log eventLog
	defer h.auth.OnAuthStateChange(log.listen)()

	h.fake.RevokeAll()
	h.clk.Advance(2 * time.Hour)
	if _, err := h.auth.GetSession(ctx); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
	if evs := log.get(); len(evs) != 1 || evs[0] != authprovider.EventSignedOut {
		t.Fatalf("events=%v", evs)
	}
}

func TestAuth_RefreshOutageKeepsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	var log eventLog
	defer h.auth.OnAuthStateChange(log.listen)()

	h.clk.Advance(2 * time.Hour)
	h.fake.FailNext(http.MethodPost, "/auth/v1/token", http.StatusServiceUnavailable,
		`{"code":503,"msg":"upstream unavailable"}`)
	_, err = h.auth.GetSession(ctx)
	if err == nil || errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("err=%v, want a transient refresh error", err)
	}
	if _, ok, _ := h.store.Get(ctx, supabase.SessionStorageKey); !ok {
		t.Fatalf("persisted session should survive an outage")
	}
	if evs := log.get(); len(evs) != 0 {
		t.Fatalf("outage should not emit events, got %v", evs)
	}

	// A restarted client over the same storage refreshes once the service is back.
	restarted := h.newAuth(t, nil)
	sess, err := restarted.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession after outage: %v", err)
	}
	if sess.User.ID != "u1" || sess.AccessToken == first.AccessToken {
		t.Fatalf("sess=%+v, want a refreshed session for u1", sess)
	}
}

func TestAuth_SignOutClearsLocallyEvenWhenRemoteFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	var log eventLog
	defer h.auth.OnAuthStateChange(log.listen)()

	h.fake.FailNext(http.MethodPost, "/auth/v1/logout", http.StatusInternalServerError, `{"code":500,"msg":"boom"}`)
	if err := h.auth.SignOut(ctx); err == nil {
		t.Fatalf("expected remote error to be reported")
	}
	if _, err := h.auth.GetSession(ctx); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("GetSession err=%v", err)
	}
	if _, ok, _ := h.store.Get(ctx, supabase.SessionStorageKey); ok {
		t.Fatalf("session should be removed from storage")
	}
	if evs := log.get(); len(evs) != 1 || evs[0] != authprovider.EventSignedOut {
		t.Fatalf("events=%v", evs)
	}

	// Signing out again with nobody signed in is a quiet no-op.
	if err := h.auth.SignOut(ctx); err != nil {
		t.Fatalf("second SignOut: %v", err)
	}
}

func TestAuth_ListenerMayCallBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	done := make(chan domain.UserID, 1)
	defer h.auth.OnAuthStateChange(func(ev authprovider.Event, _ *domain.Session) {
		if ev != authprovider.EventSignedIn {
			return
		}
		sess, err := h.auth.GetSession(ctx)
		if err != nil {
			t.Errorf("GetSession from listener: %v", err)
		}
		done <- sess.User.ID
	})()

	if _, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	select {
	case id := <-done:
		if id != "u1" {
			t.Fatalf("id=%q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener deadlocked")
	}
}

func TestAuth_VerifierChecksPersistedTokenOffline(t *testing.T) {
	t.Parallel()

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	h := newHarness(t, supabasetest.WithKeypair(kp))
	ctx := context.Background()

	if _, err := h.auth.SignInWithPassword(ctx, "jane@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	cfg, _, err := config.LoadJWTConfigFromEnv(h.fake.URL())
	if err != nil {
		t.Fatalf("LoadJWTConfigFromEnv: %v", err)
	}
	verifier := jwtverifier.NewWithOptions(cfg, nil, h.clk)

	restarted := h.newAuth(t, verifier)
	got, err := restarted.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.User.ID != "u1" {
		t.Fatalf("user=%+v", got.User)
	}
	if n := h.fake.Hits(http.MethodGet, "/auth/v1/user"); n != 0 {
		t.Fatalf("verifier path should not call /user, got %d", n)
	}
	if n := h.fake.Hits(http.MethodGet, "/auth/v1/.well-known/jwks.json"); n != 1 {
		t.Fatalf("expected one JWKS fetch, got %d", n)
	}

	// A token signed by someone else is rejected.
	other, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	forged, _ := jwks_testutil.MintRS256JWT(other, h.fake.Issuer(), "authenticated", "u1", "", h.clk.Now(), time.Hour, nil)
	b, _ := json.Marshal(map[string]any{
		"access_token":  forged,
		"refresh_token": "rt",
		"expires_at":    h.clk.Now().Add(time.Hour).Unix(),
		"user":          map[string]string{"id": "u1", "email": "jane@example.com"},
	})
	if err := h.store.Set(ctx, supabase.SessionStorageKey, string(b)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := h.newAuth(t, verifier).GetSession(ctx); !errors.Is(err, authprovider.ErrNoSession) {
		t.Fatalf("forged token err=%v, want ErrNoSession", err)
	}
}
