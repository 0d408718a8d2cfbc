package itest

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	memauth "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/authprovider"
	memavail "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/availability"
	membookings "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/bookingrepo"
	memclock "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/clock"
	memstore "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/securestore"
	pgavail "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres/availability"
	pgbookings "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres/bookingrepo"
	postgres_testutil "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres/testutil"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase/supabasetest"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/terminal"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/booking"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/rentals"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/search"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/session"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/theme"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	authport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
	availabilityport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/availability"
	bookingrepoport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
	"github.com/Overland-East-Bay/car-rental-client/internal/ui"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSupabase backend = "supabase"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "":
		return []backend{backendMemory, backendSupabase}
	case "memory":
		return []backend{backendMemory}
	case "supabase":
		return []backend{backendSupabase}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendSupabase, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|supabase|postgres|all)")
		return nil
	}
}

// Fixed ids so the postgres backend (uuid columns) can run the same scenario.
const (
	janeID  = "0b6f3c1e-5d9a-4c2b-8e71-1a2b3c4d5e01"
	samID   = "0b6f3c1e-5d9a-4c2b-8e71-1a2b3c4d5e02"
	car1ID  = "4d2a9f10-7c3e-4b5a-9d61-000000000001"
	car2ID  = "4d2a9f10-7c3e-4b5a-9d61-000000000002"
	janePwd = "jane-secret"
	samPwd  = "sam-secret"
)

var cars = []domain.Car{
	{ID: car1ID, Make: "Toyota", Model: "Corolla", Color: "Blue"},
	{ID: car2ID, Make: "Honda", Model: "Civic", Color: "Red"},
}

// world is one shared backend; each client is an independent app against it.
type world struct {
	t   *testing.T
	b   backend
	clk *memclock.ManualClock

	repo   bookingrepoport.Repository
	finder availabilityport.Finder
	fake   *supabasetest.Server
}

func newWorld(t *testing.T, b backend) *world {
	t.Helper()

	w := &world{t: t, b: b, clk: memclock.NewManualClock(time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC))}
	switch b {
	case backendMemory:
		repo := membookings.NewRepo(cars...)
		w.repo, w.finder = repo, memavail.NewFinder(repo)
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		for _, c := range cars {
			postgres_testutil.InsertCar(t, pool, c)
		}
		w.repo, w.finder = pgbookings.NewRepo(pool), pgavail.NewFinder(pool)
	case backendSupabase:
		w.fake = supabasetest.NewServer(t, supabasetest.WithClock(w.clk.Now))
		w.fake.AddUser(janeID, "jane@example.com", janePwd)
		w.fake.AddUser(samID, "sam@example.com", samPwd)
		for _, c := range cars {
			w.fake.AddCar(c)
		}
	default:
		t.Fatalf("unknown backend %q", b)
	}
	return w
}

type client struct {
	app *ui.App
}

func (w *world) newClient() *client {
	t := w.t
	t.Helper()

	var (
		provider authport.Provider
		repo     = w.repo
		finder   = w.finder
	)
	store := memstore.NewStore()

	if w.b == backendSupabase {
		c, err := supabase.NewClient(w.fake.URL(), w.fake.AnonKey, supabase.Options{MaxRPS: 100, Burst: 10})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		auth := supabase.NewAuth(c, store, supabase.AuthOptions{Clock: w.clk})
		b := supabase.NewBookings(c, supabase.SessionTokens(auth))
		provider, repo, finder = auth, b, b
	} else {
		p := memauth.NewProvider(w.clk)
		p.AddUser(janeID, "jane@example.com", janePwd)
		p.AddUser(samID, "sam@example.com", samPwd)
		provider = p
	}

	sess := session.NewStore(provider, nil)
	app := ui.NewApp(ui.Deps{
		Session: sess,
		Theme:   theme.NewStore(store, nil, nil),
		Rentals: rentals.NewService(repo),
		Search:  search.NewService(finder),
		Booking: booking.NewService(repo),
		Clock:   w.clk,
	})
	t.Cleanup(func() {
		app.Close()
		sess.Close()
	})
	app.Start(context.Background())
	return &client{app: app}
}

// run feeds lines to a fresh shell over the client's app and returns what it printed.
func (c *client) run(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	sh := terminal.NewShell(c.app, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out, terminal.Options{})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q:\n%s", w, out)
		}
	}
}
