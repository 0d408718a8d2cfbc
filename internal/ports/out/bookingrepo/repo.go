package bookingrepo

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// NewBooking is the write shape for a booking insert.
// ExpectedReturnDate is optional; the data store assigns the day after BookingDate when nil.
type NewBooking struct {
	ID                 domain.BookingID
	UserID             domain.UserID
	CarID              domain.CarID
	BookingDate        domain.Day
	ExpectedReturnDate *domain.Day
	RenterName         string
}

// Repository provides access to the bookings table.
//
// Result ordering expectations:
// - ListByUser returns rentals ordered by booking date ascending (ties by booking ID).
type Repository interface {
	// Create inserts a booking. A (car, date) uniqueness violation is reported as ErrConflict.
	Create(ctx context.Context, b NewBooking) error

	// ListByUser returns the user's bookings joined with car attributes.
	// A user with no bookings yields an empty, non-nil slice.
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Rental, error)
}
