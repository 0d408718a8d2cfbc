// Package ui holds the client's screens as plain state machines. Rendering and input live
// in adapters (see adapters/terminal); everything here is driven by method calls.
package ui

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/app/booking"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/rentals"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/search"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/session"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/theme"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	clockport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/clock"
)

type Route string

const (
	RouteLoading Route = "loading"
	RouteAuth    Route = "auth"
	RouteTabs    Route = "tabs"
)

type Tab string

const (
	TabRentals Tab = "rentals"
	TabSearch  Tab = "search"
)

// Title is the tab's header text.
func (t Tab) Title() string {
	if t == TabSearch {
		return "Search"
	}
	return "My Rentals"
}

// Alert is a blocking, user-facing message.
type Alert struct {
	Title   string
	Message string
}

// Alert titles.
const (
	AlertAuthError = "Auth error"
	AlertSignedUp  = "Signed up"
	AlertError     = "Error"
	AlertBooked    = "Booked"
	AlertFailed    = "Failed"
)

type Deps struct {
	Session *session.Store
	Theme   *theme.Store
	Rentals *rentals.Service
	Search  *search.Service
	Booking *booking.Service
	Clock   clockport.Clock
	Logger  *slog.Logger
}

// App is the root: it routes between loading, auth and the tabs, follows the session and
// theme stores, and owns the screens.
type App struct {
	deps Deps
	log  *slog.Logger

	auth    *AuthScreen
	rentals *RentalsScreen
	search  *SearchScreen

	mu     sync.Mutex
	ctx    context.Context
	route  Route
	tab    Tab
	scheme domain.ColorScheme
	alerts []Alert
	unsubs []func()
	closed bool
}

func NewApp(d Deps) *App {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{
		deps:   d,
		log:    log,
		ctx:    context.Background(),
		route:  RouteLoading,
		tab:    TabRentals,
		scheme: d.Theme.Scheme(),
	}
	a.auth = newAuthScreen(d.Session, a.pushAlert)
	a.rentals = newRentalsScreen(d.Rentals, a.currentUser, a.pushAlert)
	a.search = newSearchScreen(d.Search, d.Booking, a.currentUser, d.Clock, a.pushAlert)

	a.unsubs = append(a.unsubs,
		d.Session.OnChange(a.onSession),
		d.Theme.Subscribe(a.onTheme),
	)
	return a
}

// Start loads the theme preference and checks for an existing session, leaving the app on
// the auth screen or the tabs. ctx is also used for reloads triggered by session changes.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	a.deps.Theme.Load(ctx)
	a.deps.Session.Init(ctx)
	_, ok := a.deps.Session.Current()
	a.applySession(ok)
}

// Close deregisters every store listener. It is safe to call more than once.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (a *App) Route() Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route
}

func (a *App) Tab() Tab {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tab
}

func (a *App) Auth() *AuthScreen       { return a.auth }
func (a *App) Rentals() *RentalsScreen { return a.rentals }
func (a *App) Search() *SearchScreen   { return a.search }

// User is the signed-in user, if any.
func (a *App) User() (domain.User, bool) { return a.currentUser() }

// SelectTab switches tabs. Focusing the rentals tab reloads it. It reports false when the
// tabs are not showing.
func (a *App) SelectTab(ctx context.Context, t Tab) bool {
	a.mu.Lock()
	if a.route != RouteTabs {
		a.mu.Unlock()
		return false
	}
	a.tab = t
	a.mu.Unlock()

	if t == TabRentals {
		a.rentals.Load(ctx)
	}
	return true
}

// SignOut is the header's log-out action. The session store routes back to auth.
func (a *App) SignOut(ctx context.Context) {
	a.deps.Session.SignOut(ctx)
}

// Scheme is the effective color scheme.
func (a *App) Scheme() domain.ColorScheme {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheme
}

func (a *App) ThemePreference() domain.ThemePreference { return a.deps.Theme.Preference() }

// ThemeLabel is the toggle's caption for the current preference.
func (a *App) ThemeLabel() string {
	if a.deps.Theme.Preference() == domain.ThemeLight {
		return "☀️ Light"
	}
	return "🌙 Dark"
}

func (a *App) ToggleTheme(ctx context.Context) domain.ThemePreference {
	return a.deps.Theme.Toggle(ctx)
}

func (a *App) SetTheme(ctx context.Context, p domain.ThemePreference) error {
	return a.deps.Theme.Set(ctx, p)
}

// TakeAlerts returns and clears pending alerts, oldest first.
func (a *App) TakeAlerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.alerts
	a.alerts = nil
	return out
}

func (a *App) pushAlert(al Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
}

func (a *App) currentUser() (domain.User, bool) {
	sess, ok := a.deps.Session.Current()
	if !ok {
		return domain.User{}, false
	}
	return sess.User, true
}

func (a *App) onSession(sess *domain.Session) {
	a.applySession(sess != nil)
}

func (a *App) onTheme(c theme.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scheme = c.Scheme
}

func (a *App) applySession(signedIn bool) {
	a.mu.Lock()
	prev := a.route
	mount := false
	if signedIn {
		a.route = RouteTabs
		if prev != RouteTabs {
			a.tab = TabRentals
			mount = true
		}
	} else {
		a.route = RouteAuth
	}
	ctx := a.ctx
	a.mu.Unlock()

	switch {
	case mount:
		a.log.InfoContext(ctx, "signed in")
		a.rentals.Load(ctx)
	case !signedIn && prev == RouteTabs:
		a.log.InfoContext(ctx, "signed out")
		a.rentals.reset()
		a.search.reset()
		a.auth.reset()
	}
}
