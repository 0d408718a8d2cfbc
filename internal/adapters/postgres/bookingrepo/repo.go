package bookingrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/car-rental-client/internal/adapters/postgres"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
)

// Repo is a Postgres implementation of bookingrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, b bookingrepo.NewBooking) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(b.ID))
	if err != nil {
		return fmt.Errorf("invalid booking id: %w", err)
	}
	userID, err := uuid.Parse(string(b.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	carID, err := uuid.Parse(string(b.CarID))
	if err != nil {
		// The catalog only holds uuid keys, so a non-uuid id cannot reference a car.
		return bookingrepo.ErrCarNotFound
	}

	ret := pgtype.Date{}
	if b.ExpectedReturnDate != nil {
		ret = pgtype.Date{Time: b.ExpectedReturnDate.Time(), Valid: true}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id,
			user_id,
			car_id,
			booking_date,
			expected_return_date,
			renter_name
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		id,
		userID,
		carID,
		pgtype.Date{Time: b.BookingDate.Time(), Valid: true},
		ret,
		b.RenterName,
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch pe.Code {
			case postgres.UniqueViolationCode:
				// Both the (car, day) constraint and a reused primary key mean the slot is taken.
				return bookingrepo.ErrConflict
			case postgres.ForeignKeyViolationCode:
				return bookingrepo.ErrCarNotFound
			}
		}
		return err
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Rental, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		// Nobody with a non-uuid id can own rows.
		return []domain.Rental{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
			b.id,
			b.user_id,
			b.car_id,
			b.booking_date,
			b.expected_return_date,
			b.renter_name,
			c.make,
			c.model,
			c.color,
			c.image_url
		FROM bookings b
		JOIN cars c ON c.id = b.car_id
		WHERE b.user_id = $1
		ORDER BY b.booking_date ASC, b.id ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Rental, 0)
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rental)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRental(row pgx.Row) (domain.Rental, error) {
	var (
		id, userID, carID uuid.UUID
		bookingDate       pgtype.Date
		returnDate        pgtype.Date
		renterName        string
		carMake, model    string
		color             string
		imageURL          *string
	)
	if err := row.Scan(&id, &userID, &carID, &bookingDate, &returnDate, &renterName, &carMake, &model, &color, &imageURL); err != nil {
		return domain.Rental{}, err
	}

	b := domain.Booking{
		ID:          domain.BookingID(id.String()),
		UserID:      domain.UserID(userID.String()),
		CarID:       domain.CarID(carID.String()),
		BookingDate: domain.DayOf(bookingDate.Time),
		RenterName:  renterName,
	}
	if returnDate.Valid {
		d := domain.DayOf(returnDate.Time)
		b.ExpectedReturnDate = &d
	}
	return domain.Rental{
		Booking: b,
		Car: domain.Car{
			ID:       b.CarID,
			Make:     carMake,
			Model:    model,
			Color:    color,
			ImageURL: imageURL,
		},
	}, nil
}
