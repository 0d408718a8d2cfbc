package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase/supabasetest"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwks_testutil"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/config"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/demo"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/logger"
)

// Dev-only stand-in for the hosted backend: password auth, the rentals table and the
// available_cars RPC, all in memory. Tokens are RS256 JWTs with a JWKS endpoint so the
// client can run with JWT_VERIFY=true.
//
// This is NOT a real backend. Data is lost on exit.

func main() {
	log := logger.Setup(os.Stderr, slog.LevelInfo)

	port := getenv("PORT", "54321")
	publicURL := getenv("PUBLIC_URL", "http://localhost:"+port)
	kid := getenv("KID", "dev-kid-1")
	ttl := getenvDuration("TTL", 30*time.Minute)

	kp, err := jwks_testutil.GenerateRSAKeypair(kid)
	if err != nil {
		log.Error("generate key", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fake := supabasetest.New(publicURL, supabasetest.WithKeypair(kp), supabasetest.WithTokenTTL(ttl))
	fake.AnonKey = getenv("ANON_KEY", supabasetest.DefaultAnonKey)

	d := config.Defaults().Demo
	fake.AddUser(getenv("DEMO_USER_ID", d.UserID), getenv("DEMO_USER_EMAIL", d.Email), getenv("DEMO_USER_PASSWORD", d.Password))
	for _, c := range demo.Cars() {
		fake.AddCar(c)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("devbackend listening",
			slog.String("addr", srv.Addr),
			slog.String("url", publicURL),
			slog.String("anon_key", fake.AnonKey),
			slog.String("kid", kid),
			slog.Duration("ttl", ttl))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
