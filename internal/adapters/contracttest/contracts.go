package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	availabilityport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/availability"
	bookingrepoport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
	securestoreport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

type CleanupFunc = func()

// BookingFixture bundles the booking write/read ports of one backend with a way to seed cars.
type BookingFixture struct {
	Repo    bookingrepoport.Repository
	Finder  availabilityport.Finder
	SeedCar func(t *testing.T, c domain.Car)
}

type BookingFixtureFactory func(t *testing.T) (BookingFixture, CleanupFunc)
type SecureStoreFactory func(t *testing.T) (securestoreport.Store, CleanupFunc)

func RunSecureStore(t *testing.T, newStore SecureStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, ok, err := store.Get(ctx, "themePreference"); err != nil || ok {
		t.Fatalf("Get absent: ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "themePreference", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, "themePreference")
	if err != nil || !ok || got != "dark" {
		t.Fatalf("Get=%q ok=%v err=%v", got, ok, err)
	}

	// Overwrite semantics.
	if err := store.Set(ctx, "themePreference", "system"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, _, _ := store.Get(ctx, "themePreference"); got != "system" {
		t.Fatalf("expected overwritten value, got %q", got)
	}

	if err := store.Delete(ctx, "themePreference"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "themePreference"); ok {
		t.Fatalf("expected key deleted")
	}
	if err := store.Delete(ctx, "themePreference"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}

	for _, bad := range []string{"", "../escape", "a/b", "with space"} {
		if err := store.Set(ctx, bad, "x"); !errors.Is(err, securestoreport.ErrInvalidKey) {
			t.Fatalf("Set(%q) err=%v, want ErrInvalidKey", bad, err)
		}
	}
}

func RunBookingRepo(t *testing.T, newFixture BookingFixtureFactory) {
	t.Helper()
	ctx := context.Background()

	fx, cleanup := newFixture(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	img := "https://img.example.com/civic.png"
	carA := domain.Car{ID: domain.CarID(uuid.NewString()), Make: "Honda", Model: "Civic", Color: "Blue", ImageURL: &img}
	carB := domain.Car{ID: domain.CarID(uuid.NewString()), Make: "Toyota", Model: "Corolla", Color: "Red"}
	fx.SeedCar(t, carA)
	fx.SeedCar(t, carB)

	user := domain.UserID(uuid.NewString())
	other := domain.UserID(uuid.NewString())
	day1 := domain.MustDay(2025, time.December, 24)
	day2 := domain.MustDay(2025, time.December, 26)

	// Empty list is non-nil.
	list, err := fx.Repo.ListByUser(ctx, user)
	if err != nil {
		t.Fatalf("ListByUser empty: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", list)
	}

	avail, err := fx.Finder.AvailableCars(ctx, day1)
	if err != nil {
		t.Fatalf("AvailableCars: %v", err)
	}
	if !containsCar(avail, carA.ID) || !containsCar(avail, carB.ID) {
		t.Fatalf("expected both cars available, got %v", avail)
	}

	// Insert out of date order to exercise sorting.
	b2 := bookingrepoport.NewBooking{
		ID: domain.BookingID(uuid.NewString()), UserID: user, CarID: carB.ID, BookingDate: day2, RenterName: "Jane",
	}
	if err := fx.Repo.Create(ctx, b2); err != nil {
		t.Fatalf("Create b2: %v", err)
	}
	b1 := bookingrepoport.NewBooking{
		ID: domain.BookingID(uuid.NewString()), UserID: user, CarID: carA.ID, BookingDate: day1, RenterName: "Jane",
	}
	if err := fx.Repo.Create(ctx, b1); err != nil {
		t.Fatalf("Create b1: %v", err)
	}

	// (car, day) uniqueness, regardless of user.
	dup := bookingrepoport.NewBooking{
		ID: domain.BookingID(uuid.NewString()), UserID: other, CarID: carA.ID, BookingDate: day1, RenterName: "Bob",
	}
	if err := fx.Repo.Create(ctx, dup); !errors.Is(err, bookingrepoport.ErrConflict) {
		t.Fatalf("duplicate Create err=%v, want ErrConflict", err)
	}

	// Same car on a different day is fine.
	otherDay := bookingrepoport.NewBooking{
		ID: domain.BookingID(uuid.NewString()), UserID: other, CarID: carA.ID, BookingDate: day2, RenterName: "Bob",
	}
	if err := fx.Repo.Create(ctx, otherDay); err != nil {
		t.Fatalf("Create other day: %v", err)
	}

	list, err = fx.Repo.ListByUser(ctx, user)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len=%d, want 2", len(list))
	}
	if list[0].ID != b1.ID || list[1].ID != b2.ID {
		t.Fatalf("order=[%s %s], want [%s %s]", list[0].ID, list[1].ID, b1.ID, b2.ID)
	}
	first := list[0]
	if first.BookingDate != day1 || first.RenterName != "Jane" || first.CarID != carA.ID || first.UserID != user {
		t.Fatalf("unexpected booking: %+v", first.Booking)
	}
	if first.Car.Make != "Honda" || first.Car.Model != "Civic" || first.Car.Color != "Blue" {
		t.Fatalf("unexpected joined car: %+v", first.Car)
	}
	if first.Car.ImageURL == nil || *first.Car.ImageURL != img {
		t.Fatalf("image_url=%v", first.Car.ImageURL)
	}
	if list[1].Car.ImageURL != nil {
		t.Fatalf("expected nil image_url for carB")
	}
	if first.ExpectedReturnDate == nil || *first.ExpectedReturnDate != day1.AddDays(1) {
		t.Fatalf("expected_return_date=%v, want %v", first.ExpectedReturnDate, day1.AddDays(1))
	}

	avail, err = fx.Finder.AvailableCars(ctx, day1)
	if err != nil {
		t.Fatalf("AvailableCars after booking: %v", err)
	}
	if containsCar(avail, carA.ID) {
		t.Fatalf("carA should not be available on %s", day1)
	}
	if !containsCar(avail, carB.ID) {
		t.Fatalf("carB should be available on %s", day1)
	}

	avail, err = fx.Finder.AvailableCars(ctx, day2)
	if err != nil {
		t.Fatalf("AvailableCars day2: %v", err)
	}
	if containsCar(avail, carA.ID) || containsCar(avail, carB.ID) {
		t.Fatalf("no seeded car should be available on %s, got %v", day2, avail)
	}
}

func containsCar(cs []domain.Car, id domain.CarID) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
