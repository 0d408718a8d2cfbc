package ui

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/app/rentals"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

const RentalsEmptyText = "You haven't rented any cars yet."

// RentalsScreen lists the user's bookings. It loads on mount, on refocus and on refresh.
type RentalsScreen struct {
	svc   *rentals.Service
	user  func() (domain.User, bool)
	alert func(Alert)

	mu      sync.Mutex
	items   []domain.Rental
	loaded  bool
	loading int
	seq     uint64
}

func newRentalsScreen(svc *rentals.Service, user func() (domain.User, bool), alert func(Alert)) *RentalsScreen {
	return &RentalsScreen{svc: svc, user: user, alert: alert}
}

// Load fetches the list. On failure an "Error" alert is raised and the prior list is kept.
// Only the latest of overlapping loads is applied.
func (s *RentalsScreen) Load(ctx context.Context) {
	u, ok := s.user()
	if !ok {
		return
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading++
	s.mu.Unlock()

	items, err := s.svc.ListMyBookings(ctx, u.ID)

	s.mu.Lock()
	s.loading--
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.items = items
		s.loaded = true
	}
	s.mu.Unlock()

	if err != nil {
		s.alert(Alert{Title: AlertError, Message: err.Error()})
	}
}

// Refresh is pull-to-refresh.
func (s *RentalsScreen) Refresh(ctx context.Context) { s.Load(ctx) }

func (s *RentalsScreen) Items() []domain.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Rental, len(s.items))
	copy(out, s.items)
	return out
}

// Loaded reports whether any load has succeeded since sign-in.
func (s *RentalsScreen) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *RentalsScreen) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *RentalsScreen) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.loaded = false
	s.seq++
}
