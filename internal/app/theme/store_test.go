package theme_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	memsecurestore "github.com/Overland-East-Bay/car-rental-client/internal/adapters/memory/securestore"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/theme"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

func osDark() domain.ColorScheme  { return domain.SchemeDark }
func osLight() domain.ColorScheme { return domain.SchemeLight }

func TestStore_LoadDefaultsWhenAbsentOrInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memsecurestore.NewStore()
	s := theme.NewStore(st, osDark, nil)
	if got := s.Load(ctx); got != theme.DefaultPreference || got != domain.ThemeLight {
		t.Fatalf("absent => %q", got)
	}

	for _, raw := range []string{"Dark", "blue", "", " light"} {
		_ = st.Set(ctx, theme.StorageKey, raw)
		if got := s.Load(ctx); got != theme.DefaultPreference {
			t.Fatalf("stored %q => %q, want default", raw, got)
		}
	}

	_ = st.Set(ctx, theme.StorageKey, "system")
	if got := s.Load(ctx); got != domain.ThemeSystem {
		t.Fatalf("stored system => %q", got)
	}
	if s.Scheme() != domain.SchemeDark {
		t.Fatalf("system with dark OS => %q", s.Scheme())
	}
}

func TestStore_SetNotifiesThenPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memsecurestore.NewStore()
	s := theme.NewStore(st, osLight, nil)
	var got []theme.Change
	defer s.Subscribe(func(c theme.Change) { got = append(got, c) })()

	if err := s.Set(ctx, domain.ThemeDark); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(got) != 1 || got[0].Preference != domain.ThemeDark || got[0].Scheme != domain.SchemeDark {
		t.Fatalf("changes=%+v", got)
	}
	if raw, ok, _ := st.Get(ctx, theme.StorageKey); !ok || raw != "dark" {
		t.Fatalf("persisted=%q ok=%v", raw, ok)
	}

	// Same value: persisted again, no duplicate notification.
	_ = s.Set(ctx, domain.ThemeDark)
	if len(got) != 1 {
		t.Fatalf("duplicate notification: %+v", got)
	}

	if err := s.Set(ctx, "sepia"); !errors.Is(err, theme.ErrInvalidPreference) {
		t.Fatalf("invalid Set err=%v", err)
	}
	if s.Preference() != domain.ThemeDark {
		t.Fatalf("invalid Set must not change preference")
	}
}

func TestStore_PersistFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memsecurestore.NewStore()
	st.SetWriteError(errors.New("disk full"))
	s := theme.NewStore(st, osLight, nil)

	if err := s.Set(ctx, domain.ThemeDark); err != nil {
		t.Fatalf("Set should swallow persistence errors, got %v", err)
	}
	if s.Scheme() != domain.SchemeDark {
		t.Fatalf("in-memory preference should still apply")
	}

	// A fresh store over the same storage never saw the write.
	if got := theme.NewStore(st, osLight, nil).Load(ctx); got != theme.DefaultPreference {
		t.Fatalf("Load=%q", got)
	}
}

func TestStore_Toggle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := theme.NewStore(memsecurestore.NewStore(), osDark, nil)
	if got := s.Toggle(ctx); got != domain.ThemeDark {
		t.Fatalf("light => %q", got)
	}
	if got := s.Toggle(ctx); got != domain.ThemeLight {
		t.Fatalf("dark => %q", got)
	}

	_ = s.Set(ctx, domain.ThemeSystem) // resolves to dark on this OS
	if got := s.Toggle(ctx); got != domain.ThemeLight {
		t.Fatalf("system(dark) => %q", got)
	}
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := theme.NewStore(memsecurestore.NewStore(), nil, nil)
	calls := 0
	unsub := s.Subscribe(func(theme.Change) { calls++ })
	_ = s.Set(ctx, domain.ThemeDark)
	unsub()
	_ = s.Set(ctx, domain.ThemeLight)
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pref domain.ThemePreference
		os   domain.ColorScheme
		want domain.ColorScheme
	}{
		{domain.ThemeSystem, domain.SchemeDark, domain.SchemeDark},
		{domain.ThemeSystem, "", domain.SchemeLight},
		{domain.ThemeLight, domain.SchemeDark, domain.SchemeLight},
		{domain.ThemeDark, domain.SchemeLight, domain.SchemeDark},
		{"bogus", domain.SchemeDark, theme.Resolve(theme.DefaultPreference, domain.SchemeDark)},
	}
	for _, tc := range cases {
		if got := theme.Resolve(tc.pref, tc.os); got != tc.want {
			t.Errorf("Resolve(%q,%q)=%q, want %q", tc.pref, tc.os, got, tc.want)
		}
	}
}

func TestStore_ConcurrentSetsAgree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memsecurestore.NewStore()
	s := theme.NewStore(st, osLight, nil)
	var (
		mu   sync.Mutex
		last theme.Change
	)
	defer s.Subscribe(func(c theme.Change) {
		mu.Lock()
		defer mu.Unlock()
		last = c
	})()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.ThemeDark
			if i%2 == 0 {
				p = domain.ThemeLight
			}
			_ = s.Set(ctx, p)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	raw, _, _ := st.Get(ctx, theme.StorageKey)
	if last.Preference != s.Preference() || string(last.Preference) != raw {
		t.Fatalf("last change %q, memory %q, storage %q", last.Preference, s.Preference(), raw)
	}
}
