package jwtverifier_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwks_testutil"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/config"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testConfig(jwksURL string) config.JWTConfig {
	return config.JWTConfig{
		Issuer:                 "https://proj.supabase.co/auth/v1",
		Audience:               "authenticated",
		JWKSURL:                jwksURL,
		ClockSkew:              0,
		JWKSRefreshInterval:    10 * time.Minute,
		JWKSMinRefreshInterval: 0,
		HTTPTimeout:            2 * time.Second,
	}
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok, err := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "user-123", "jane@example.com", clk.Now(), 5*time.Minute, nil)
	if err != nil {
		t.Fatalf("MintRS256JWT: %v", err)
	}

	claims, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-123" || claims.Email != "jane@example.com" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(clk.Now().Add(5 * time.Minute)) {
		t.Fatalf("ExpiresAt=%v", claims.ExpiresAt)
	}
}

func TestVerifier_Verify_AudienceArray(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()
	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, []string{"other", cfg.Audience}, "user-123", "", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifier_Verify_Expired(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "user-123", "", clk.Now(), -1*time.Minute, nil)
	if _, err := v.Verify(context.Background(), tok); err != jwtverifier.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifier_Verify_NotYetValid(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()
	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	nbf := 2 * time.Minute
	tok, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "user-123", "", clk.Now(), 5*time.Minute, &nbf)
	if _, err := v.Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected error for nbf in the future")
	}
}

func TestVerifier_Verify_MissingSubOrExp(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()
	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	noSub, _ := jwks_testutil.Mint(kp, jwt.MapClaims{
		"iss": cfg.Issuer, "aud": cfg.Audience, "exp": clk.Now().Add(time.Minute).Unix(),
	})
	if _, err := v.Verify(context.Background(), noSub); err == nil {
		t.Fatalf("expected error for missing sub")
	}

	noExp, _ := jwks_testutil.Mint(kp, jwt.MapClaims{
		"iss": cfg.Issuer, "aud": cfg.Audience, "sub": "user-123",
	})
	if _, err := v.Verify(context.Background(), noExp); err == nil {
		t.Fatalf("expected error for missing exp")
	}
}

func TestVerifier_Verify_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	wrongIss, _ := jwks_testutil.MintRS256JWT(kp, "wrong-iss", cfg.Audience, "user-123", "", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), wrongIss); err == nil {
		t.Fatalf("expected error for wrong iss")
	}

	wrongAud, _ := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, "anon", "user-123", "", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), wrongAud); err == nil {
		t.Fatalf("expected error for wrong aud")
	}
}

func TestVerifier_Verify_BadSignature(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	// Same kid, different private key than what's in JWKS.
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	otherKP := jwks_testutil.Keypair{Kid: "kid-1", Private: other}
	tok, _ := jwks_testutil.MintRS256JWT(otherKP, cfg.Issuer, cfg.Audience, "user-123", "", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifier_Verify_RejectsHS256(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()
	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	setKeys([]jwks_testutil.Keypair{kp})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": cfg.Issuer, "aud": cfg.Audience, "sub": "user-123", "exp": clk.Now().Add(time.Minute).Unix(),
	})
	hs.Header["kid"] = "kid-1"
	tok, err := hs.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := v.Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected HS256 token to be rejected")
	}
}

func TestVerifier_Verify_JWKSRotation_OldKidRejected_NewKidAccepted(t *testing.T) {
	t.Parallel()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	defer jwksSrv.Close()

	k1, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	k2, _ := jwks_testutil.GenerateRSAKeypair("kid-2")
	setKeys([]jwks_testutil.Keypair{k1})

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(jwksSrv.URL)
	cfg.JWKSRefreshInterval = 1 * time.Second
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	tok1, _ := jwks_testutil.MintRS256JWT(k1, cfg.Issuer, cfg.Audience, "user-123", "", clk.Now(), 5*time.Minute, nil)
	if _, err := v.Verify(context.Background(), tok1); err != nil {
		t.Fatalf("expected tok1 to verify: %v", err)
	}

	// Rotate: JWKS now only contains kid-2.
	setKeys([]jwks_testutil.Keypair{k2})
	clk.Advance(2 * time.Second) // force interval refresh on next Verify call.

	if _, err := v.Verify(context.Background(), tok1); err == nil {
		t.Fatalf("expected tok1 to be rejected after rotation")
	}

	tok2, _ := jwks_testutil.MintRS256JWT(k2, cfg.Issuer, cfg.Audience, "user-456", "", clk.Now(), 5*time.Minute, nil)
	claims, err := v.Verify(context.Background(), tok2)
	if err != nil {
		t.Fatalf("expected tok2 to verify: %v", err)
	}
	if claims.Subject != "user-456" {
		t.Fatalf("sub mismatch: got %q", claims.Subject)
	}
}

func TestVerifier_UnknownKidRefreshIsRateLimited(t *testing.T) {
	t.Parallel()

	k1, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(jwks_testutil.JWKSJSON([]jwks_testutil.Keypair{k1}))
	}))
	defer srv.Close()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := testConfig(srv.URL)
	cfg.JWKSMinRefreshInterval = 10 * time.Second
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	stranger, _ := jwks_testutil.GenerateRSAKeypair("kid-unknown")
	tok, _ := jwks_testutil.MintRS256JWT(stranger, cfg.Issuer, cfg.Audience, "user-123", "", clk.Now(), 5*time.Minute, nil)
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), tok); err == nil {
			t.Fatalf("expected unknown kid to be rejected")
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("fetches=%d, want 1", got)
	}

	clk.Advance(11 * time.Second)
	_, _ = v.Verify(context.Background(), tok)
	if got := fetches.Load(); got != 2 {
		t.Fatalf("fetches=%d, want 2 after min interval", got)
	}
}
