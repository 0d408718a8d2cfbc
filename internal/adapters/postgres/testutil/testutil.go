package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// OpenMigratedPool connects to TEST_DATABASE_URL, applies migrations and empties the tables.
// The test is skipped when TEST_DATABASE_URL is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres tests")
	}
	if err := postgres.RunMigrations(dsn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{PingTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE bookings, cars`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// InsertCar seeds a car row. Car IDs must be uuids.
func InsertCar(t *testing.T, pool *pgxpool.Pool, c domain.Car) {
	t.Helper()

	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		t.Fatalf("car id must be a uuid: %v", err)
	}
	if _, err := pool.Exec(context.Background(), `
		INSERT INTO cars (id, make, model, color, image_url)
		VALUES ($1, $2, $3, $4, $5)
	`, id, c.Make, c.Model, c.Color, c.ImageURL); err != nil {
		t.Fatalf("insert car: %v", err)
	}
}
