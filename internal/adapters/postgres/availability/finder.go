package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Finder calls the available_cars(day) SQL function.
type Finder struct {
	pool *pgxpool.Pool
}

func NewFinder(pool *pgxpool.Pool) *Finder {
	return &Finder{pool: pool}
}

func (f *Finder) AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error) {
	if f.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := f.pool.Query(ctx, `
		SELECT id, make, model, color, image_url
		FROM available_cars($1)
	`, pgtype.Date{Time: day.Time(), Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Car, 0)
	for rows.Next() {
		var (
			id       uuid.UUID
			c        domain.Car
			imageURL *string
		)
		if err := rows.Scan(&id, &c.Make, &c.Model, &c.Color, &imageURL); err != nil {
			return nil, err
		}
		c.ID = domain.CarID(id.String())
		c.ImageURL = imageURL
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
