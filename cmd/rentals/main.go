package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/termenv"

	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/filestore"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/keychain"
	memauth "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/authprovider"
	memavail "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/availability"
	membookings "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/bookingrepo"
	postgres "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres"
	pgavail "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres/availability"
	pgbookings "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres/bookingrepo"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/terminal"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/booking"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/rentals"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/search"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/session"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/theme"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwtverifier"
	platformclock "github.com/Overland-East-Bay/car-rental-client/internal/platform/clock"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/config"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/demo"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/logger"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/osscheme"
	authport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
	availabilityport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/availability"
	bookingrepoport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui/render"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rentals: %v\n", err)
		os.Exit(1)
	}
}

type backends struct {
	auth    authport.Provider
	repo    bookingrepoport.Repository
	finder  availabilityport.Finder
	cleanup func()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dir := cfg.StorageDir
	if dir == "" {
		if dir, err = filestore.DefaultDir(); err != nil {
			return fmt.Errorf("storage dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage dir: %w", err)
	}
	interactive := terminal.IsTerminal(os.Stdout)
	logOut, closeLog, err := logger.Open(logger.ResolvePath(cfg.Logging.File, dir, interactive))
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Setup(logOut, level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openSecureStore(ctx, cfg.SecureStore, dir, log)
	if err != nil {
		return err
	}

	clk := platformclock.NewSystemClock()
	b, err := openBackend(ctx, cfg, store, clk, log)
	if err != nil {
		return err
	}
	if b.cleanup != nil {
		defer b.cleanup()
	}
	log.Info("backend ready", slog.String("backend", string(cfg.Backend)), slog.String("storage_dir", dir))

	sess := session.NewStore(b.auth, log.With(slog.String("component", "session")))
	defer sess.Close()
	stdout := termenv.NewOutput(os.Stdout)
	themes := theme.NewStore(store, func() domain.ColorScheme {
		return osscheme.Detect(cfg.OSColorScheme, os.Getenv, stdout)
	}, log.With(slog.String("component", "theme")))

	app := ui.NewApp(ui.Deps{
		Session: sess,
		Theme:   themes,
		Rentals: rentals.NewService(b.repo),
		Search:  search.NewService(b.finder),
		Booking: booking.NewService(b.repo),
		Clock:   clk,
		Logger:  log,
	})
	defer app.Close()
	app.Start(ctx)

	sh := terminal.NewShell(app, os.Stdin, os.Stdout, terminal.Options{
		Color:        render.ColorOutput(stdout, os.Getenv),
		ReadPassword: terminal.TermPassword(os.Stdin, os.Stdout),
	})
	return sh.Run(ctx)
}

// openSecureStore prefers the OS keychain and falls back to files under dir when no keychain
// service is reachable (headless Linux without a secret service, for example).
func openSecureStore(ctx context.Context, kind config.SecureStore, dir string, log *slog.Logger) (securestore.Store, error) {
	if kind == config.SecureStoreKeyring {
		kc := keychain.New(keychain.DefaultService)
		err := kc.Available(ctx)
		if err == nil {
			return kc, nil
		}
		log.Warn("falling back to file storage", slog.String("dir", dir), slog.Any("err", err))
	}
	store, err := filestore.New(dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openBackend(ctx context.Context, cfg config.Config, store securestore.Store, clk platformclock.SystemClock, log *slog.Logger) (backends, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, supabase.Options{
			Timeout: cfg.Supabase.HTTPTimeout,
			MaxRPS:  cfg.Supabase.MaxRPS,
			Burst:   cfg.Supabase.Burst,
			Logger:  log.With(slog.String("component", "supabase")),
		})
		if err != nil {
			return backends{}, fmt.Errorf("supabase: %w", err)
		}

		opts := supabase.AuthOptions{Clock: clk, Logger: log.With(slog.String("component", "auth"))}
		jwtCfg, verify, err := config.LoadJWTConfigFromEnv(cfg.Supabase.URL)
		if err != nil {
			return backends{}, fmt.Errorf("invalid auth config: %w", err)
		}
		if verify {
			opts.Verifier = jwtverifier.New(jwtCfg)
		}

		auth := supabase.NewAuth(client, store, opts)
		bookings := supabase.NewBookings(client, supabase.SessionTokens(auth))
		return backends{auth: auth, repo: bookings, finder: bookings}, nil

	case config.BackendPostgres:
		if cfg.Database.Migrate {
			if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
				return backends{}, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:    cfg.Database.MaxConns,
			PingTimeout: 5 * time.Second,
		})
		if err != nil {
			return backends{}, fmt.Errorf("invalid postgres config: %w", err)
		}
		return backends{
			auth:    demoAuth(cfg, clk),
			repo:    pgbookings.NewRepo(pool),
			finder:  pgavail.NewFinder(pool),
			cleanup: pool.Close,
		}, nil

	default:
		repo := membookings.NewRepo(demo.Cars()...)
		return backends{auth: demoAuth(cfg, clk), repo: repo, finder: memavail.NewFinder(repo)}, nil
	}
}

// demoAuth is the in-process provider used when no hosted auth is configured.
func demoAuth(cfg config.Config, clk platformclock.SystemClock) *memauth.Provider {
	p := memauth.NewProvider(clk)
	p.AddUser(domain.UserID(cfg.Demo.UserID), cfg.Demo.Email, cfg.Demo.Password)
	return p
}
