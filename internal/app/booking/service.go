// Package booking reserves a car for a day on behalf of the signed-in user.
package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/backenderr"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
)

const (
	CodeConflict   = "BOOKING_CONFLICT"
	CodeFailed     = "BOOKING_FAILED"
	CodeValidation = "VALIDATION_ERROR"
)

// ConflictMessage is shown when the car already has a booking on the chosen day.
const ConflictMessage = "That car is already booked on this date."

// GuestName is the renter name of last resort.
const GuestName = "Guest"

type CreateBookingInput struct {
	CarID      domain.CarID
	Day        domain.Day
	RenterName string
	User       domain.User
}

type Service struct {
	repo bookingrepo.Repository

	newBookingID func() domain.BookingID
}

func NewService(repo bookingrepo.Repository) *Service {
	return &Service{
		repo: repo,
		newBookingID: func() domain.BookingID {
			return domain.BookingID(uuid.NewString())
		},
	}
}

// SetNewBookingIDForTest overrides id generation.
func (s *Service) SetNewBookingIDForTest(fn func() domain.BookingID) { s.newBookingID = fn }

// ResolveRenterName prefers the typed name, then the user's email, then GuestName.
func ResolveRenterName(input string, user domain.User) string {
	if n := domain.NormalizeHumanName(input); n != "" {
		return n
	}
	if e := domain.NormalizeEmail(user.Email); e != "" {
		return e
	}
	return GuestName
}

// CreateBooking inserts one booking. Nothing is cached: callers re-query to see it.
// The data store assigns the expected return date (the following day).
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	switch {
	case in.User.ID == "":
		return domain.Booking{}, &Error{Code: CodeValidation, Message: "Sign in to book a car."}
	case in.CarID == "":
		return domain.Booking{}, &Error{Code: CodeValidation, Message: "Pick a car to book."}
	case !in.Day.Valid():
		return domain.Booking{}, &Error{Code: CodeValidation, Message: "Pick a valid date."}
	}

	nb := bookingrepo.NewBooking{
		ID:          s.newBookingID(),
		UserID:      in.User.ID,
		CarID:       in.CarID,
		BookingDate: in.Day,
		RenterName:  ResolveRenterName(in.RenterName, in.User),
	}
	if err := s.repo.Create(ctx, nb); err != nil {
		if errors.Is(err, bookingrepo.ErrConflict) {
			return domain.Booking{}, &Error{Code: CodeConflict, Message: ConflictMessage, Err: err}
		}
		return domain.Booking{}, &Error{Code: CodeFailed, Message: backenderr.Message(err), Err: err}
	}

	ret := in.Day.AddDays(1)
	return domain.Booking{
		ID:                 nb.ID,
		UserID:             nb.UserID,
		CarID:              nb.CarID,
		BookingDate:        nb.BookingDate,
		ExpectedReturnDate: &ret,
		RenterName:         nb.RenterName,
	}, nil
}
