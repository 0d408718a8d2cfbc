package availability

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Finder is the remote availability procedure.
type Finder interface {
	// AvailableCars returns the cars with no booking on day.
	// Order is whatever the backend produces; callers sort if they need to.
	AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error)
}
