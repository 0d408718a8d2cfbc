// Package search finds cars free on a given day.
package search

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/backenderr"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/availability"
)

const (
	CodeSearchFailed = "SEARCH_FAILED"
	CodeValidation   = "VALIDATION_ERROR"
)

type Service struct {
	finder availability.Finder
}

func NewService(finder availability.Finder) *Service {
	return &Service{finder: finder}
}

// SearchAvailable returns the cars with no booking on day, in backend order.
// Callers normalize the day at the input boundary (domain.NormalizeDay).
func (s *Service) SearchAvailable(ctx context.Context, day domain.Day) ([]domain.Car, error) {
	if !day.Valid() {
		return nil, &Error{Code: CodeValidation, Message: "Pick a valid date."}
	}
	cars, err := s.finder.AvailableCars(ctx, day)
	if err != nil {
		return nil, &Error{Code: CodeSearchFailed, Message: backenderr.Message(err), Err: err}
	}
	if cars == nil {
		cars = []domain.Car{}
	}
	return cars, nil
}
