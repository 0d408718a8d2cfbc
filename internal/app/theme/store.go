// Package theme keeps the user's appearance preference in memory, persists it to secure
// storage and tells subscribers when the effective color scheme may have changed.
package theme

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/notify"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

// StorageKey is the secure-storage key holding the raw preference string.
const StorageKey = "themePreference"

// DefaultPreference is used whenever the stored value is absent, unreadable or invalid.
const DefaultPreference = domain.DefaultThemePreference

var ErrInvalidPreference = errors.New("theme preference must be light, dark or system")

// Change is delivered to subscribers after the preference changes.
type Change struct {
	Preference domain.ThemePreference
	Scheme     domain.ColorScheme
}

type Store struct {
	storage  securestore.Store
	osScheme func() domain.ColorScheme
	log      *slog.Logger

	// pubMu serializes apply, delivery and persistence so the last published change is
	// also what memory and storage hold.
	pubMu sync.Mutex
	mu    sync.Mutex
	pref  domain.ThemePreference

	listeners notify.Registry[Change]
}

// NewStore starts at DefaultPreference; call Load to read the persisted value.
// osScheme reports the OS appearance and may be nil (treated as light).
func NewStore(storage securestore.Store, osScheme func() domain.ColorScheme, log *slog.Logger) *Store {
	if osScheme == nil {
		osScheme = func() domain.ColorScheme { return "" }
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{storage: storage, osScheme: osScheme, log: log, pref: DefaultPreference}
}

// Resolve maps a preference to the effective scheme given the OS scheme.
func Resolve(p domain.ThemePreference, osScheme domain.ColorScheme) domain.ColorScheme {
	return domain.ResolveColorScheme(p, osScheme)
}

// Load reads the persisted preference. Read failures and invalid values yield DefaultPreference.
func (s *Store) Load(ctx context.Context) domain.ThemePreference {
	p := DefaultPreference
	raw, ok, err := s.storage.Get(ctx, StorageKey)
	switch {
	case err != nil:
		s.log.WarnContext(ctx, "read theme preference failed", slog.String("error", err.Error()))
	case ok:
		if parsed, valid := domain.ParseThemePreference(raw); valid {
			p = parsed
		} else {
			s.log.InfoContext(ctx, "ignoring invalid stored theme preference", slog.String("value", raw))
		}
	}
	s.pubMu.Lock()
	s.apply(p)
	s.pubMu.Unlock()
	return p
}

func (s *Store) Preference() domain.ThemePreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pref
}

// Scheme is the effective scheme for the current preference.
func (s *Store) Scheme() domain.ColorScheme {
	return Resolve(s.Preference(), s.osScheme())
}

// Set updates the in-memory preference, notifies subscribers, then persists it.
// Persistence failures are logged and do not fail the call.
func (s *Store) Set(ctx context.Context, p domain.ThemePreference) error {
	if _, ok := domain.ParseThemePreference(string(p)); !ok {
		return ErrInvalidPreference
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.apply(p)
	if err := s.storage.Set(ctx, StorageKey, string(p)); err != nil {
		s.log.WarnContext(ctx, "persist theme preference failed", slog.String("error", err.Error()))
	}
	return nil
}

// Toggle flips the effective scheme: dark becomes light and anything else becomes dark.
// A "system" preference is resolved first, so toggling always leaves an explicit choice.
func (s *Store) Toggle(ctx context.Context) domain.ThemePreference {
	next := domain.ThemeDark
	if s.Scheme() == domain.SchemeDark {
		next = domain.ThemeLight
	}
	_ = s.Set(ctx, next)
	return next
}

func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	return s.listeners.Subscribe(fn)
}

// apply must be called with pubMu held.
func (s *Store) apply(p domain.ThemePreference) {
	s.mu.Lock()
	changed := s.pref != p
	s.pref = p
	s.mu.Unlock()

	if changed {
		s.listeners.Publish(Change{Preference: p, Scheme: Resolve(p, s.osScheme())})
	}
}
