package filestore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/contracttest"
	securestoreport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

func TestContract_FileStore(t *testing.T) {
	contracttest.RunSecureStore(t, func(t *testing.T) (securestoreport.Store, func()) {
		t.Helper()
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s, nil
	})
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s1, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s1.Set(context.Background(), "sb-session", `{"access_token":"x"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := New(dir)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	got, ok, err := s2.Get(context.Background(), "sb-session")
	if err != nil || !ok || got != `{"access_token":"x"}` {
		t.Fatalf("Get=%q ok=%v err=%v", got, ok, err)
	}
}

func TestStore_FilePermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}

	dir := filepath.Join(t.TempDir(), "nested")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Set(context.Background(), "themePreference", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	di, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if di.Mode().Perm() != 0o700 {
		t.Fatalf("dir perm=%v", di.Mode().Perm())
	}
	fi, err := os.Stat(filepath.Join(dir, "themePreference"))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("file perm=%v", fi.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "k", "v"); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestNew_EmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatalf("expected error")
	}
}
