package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// JWTConfig configures optional verification of access tokens against the auth provider's JWKS.
//
// When enabled, a persisted session whose token fails verification is treated as signed out.
type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	HTTPTimeout time.Duration
}

// LoadJWTConfigFromEnv derives verification settings from the Supabase project URL, with
// JWT_* environment overrides. enabled is false unless JWT_VERIFY is true or JWT_JWKS_URL is set.
func LoadJWTConfigFromEnv(supabaseURL string) (cfg JWTConfig, enabled bool, err error) {
	base := strings.TrimRight(supabaseURL, "/")

	// Reasonable defaults that make local/dev/test behavior predictable.
	cfg = JWTConfig{
		Issuer:    base + "/auth/v1",
		Audience:  "authenticated",
		JWKSURL:   base + "/auth/v1/.well-known/jwks.json",
		ClockSkew: 30 * time.Second,
		// Refresh periodically to pick up key rotation even if an old key is still cached.
		JWKSRefreshInterval: 5 * time.Minute,
		// Bound refresh frequency when a token presents an unknown kid.
		JWKSMinRefreshInterval: 10 * time.Second,
		HTTPTimeout:            5 * time.Second,
	}

	if v := os.Getenv("JWT_VERIFY"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return JWTConfig{}, false, fmt.Errorf("JWT_VERIFY must be a boolean: %w", perr)
		}
		enabled = b
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.Audience = v
	}
	if v := os.Getenv("JWT_JWKS_URL"); v != "" {
		cfg.JWKSURL = v
		enabled = true
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
		eg  string
	}{
		{"JWT_CLOCK_SKEW", &cfg.ClockSkew, "30s"},
		{"JWT_JWKS_REFRESH_INTERVAL", &cfg.JWKSRefreshInterval, "5m"},
		{"JWT_JWKS_MIN_REFRESH_INTERVAL", &cfg.JWKSMinRefreshInterval, "10s"},
	} {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, perr := time.ParseDuration(v)
		if perr != nil {
			return JWTConfig{}, false, fmt.Errorf("%s must be a duration (e.g. %s): %w", d.key, d.eg, perr)
		}
		*d.dst = parsed
	}

	if enabled && base == "" && os.Getenv("JWT_JWKS_URL") == "" {
		return JWTConfig{}, false, fmt.Errorf("JWT verification needs SUPABASE_URL or JWT_JWKS_URL")
	}
	return cfg, enabled, nil
}
