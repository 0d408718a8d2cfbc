// Package rentals lists the signed-in user's bookings.
package rentals

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/backenderr"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
)

const (
	CodeQueryFailed     = "QUERY_FAILED"
	CodeUnauthenticated = "UNAUTHENTICATED"
)

type Service struct {
	repo bookingrepo.Repository
}

func NewService(repo bookingrepo.Repository) *Service {
	return &Service{repo: repo}
}

// ListMyBookings returns userID's bookings with their cars, ascending by booking date.
// The result is never nil; failures carry the backend's raw message.
func (s *Service) ListMyBookings(ctx context.Context, userID domain.UserID) ([]domain.Rental, error) {
	if userID == "" {
		return nil, &Error{Code: CodeUnauthenticated, Message: "Sign in to see your rentals."}
	}
	rs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, &Error{Code: CodeQueryFailed, Message: backenderr.Message(err), Err: err}
	}
	out := make([]domain.Rental, len(rs))
	copy(out, rs)
	domain.SortRentalsByDate(out)
	return out, nil
}
