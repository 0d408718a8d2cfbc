package availability

import (
	"context"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Source is the part of the in-memory booking repo the finder reads.
type Source interface {
	AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error)
}

// Finder is an in-memory implementation of availability.Finder.
// It computes availability from the same repo that stores bookings, so a booking
// made through the repo is immediately reflected here.
type Finder struct {
	src Source
}

func NewFinder(src Source) *Finder {
	return &Finder{src: src}
}

func (f *Finder) AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.src.AvailableCars(ctx, day)
}
