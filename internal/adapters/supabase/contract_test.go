package supabase_test

import (
	"context"
	"testing"

	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase"
	"github.com/Overland-East-Bay/car-rental-client/internal/adapters/supabase/supabasetest"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

func TestContract_BookingRepo(t *testing.T) {
	contracttest.RunBookingRepo(t, func(t *testing.T) (contracttest.BookingFixture, func()) {
		t.Helper()
		fake := supabasetest.NewServer(t)
		client, err := supabase.NewClient(fake.URL(), fake.AnonKey, supabase.Options{})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		// The contract writes for several users, so it runs with RLS bypassed.
		b := supabase.NewBookings(client, func(context.Context) (string, error) {
			return supabasetest.ServiceRoleKey, nil
		})
		return contracttest.BookingFixture{
			Repo:    b,
			Finder:  b,
			SeedCar: func(_ *testing.T, c domain.Car) { fake.AddCar(c) },
		}, nil
	})
}
