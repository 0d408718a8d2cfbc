package ui

import (
	"context"
	"fmt"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/app/booking"
	"github.com/Overland-East-Bay/car-rental-client/internal/app/search"
	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	clockport "github.com/Overland-East-Bay/car-rental-client/internal/ports/out/clock"
)

const SearchEmptyText = "No cars yet. Pick a date and search."

// Confirmation is the open "Confirm booking" dialog.
type Confirmation struct {
	Car        domain.Car
	Day        domain.Day
	RenterName string
}

// SearchScreen picks a day, lists the cars free on it and books one through a confirmation.
type SearchScreen struct {
	svc      *search.Service
	bookings *booking.Service
	user     func() (domain.User, bool)
	clk      clockport.Clock
	alert    func(Alert)

	mu      sync.Mutex
	day     domain.Day
	cars    []domain.Car
	sorted  bool
	seq     uint64
	confirm *Confirmation
}

func newSearchScreen(svc *search.Service, bookings *booking.Service, user func() (domain.User, bool), clk clockport.Clock, alert func(Alert)) *SearchScreen {
	return &SearchScreen{svc: svc, bookings: bookings, user: user, clk: clk, alert: alert}
}

// Day is the selected day; today until one is picked.
func (s *SearchScreen) Day() domain.Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayLocked()
}

func (s *SearchScreen) dayLocked() domain.Day {
	return s.day.OrToday(s.clk.Now())
}

// SetDate normalizes input at the boundary: anything unparseable becomes today.
func (s *SearchScreen) SetDate(input string) domain.Day {
	d := domain.NormalizeDay(input, s.clk.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day = d
	return d
}

// Search queries availability for the selected day. Responses to superseded searches
// are dropped. On failure an "Error" alert is raised and the prior list is kept.
func (s *SearchScreen) Search(ctx context.Context) bool {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	day := s.dayLocked()
	s.mu.Unlock()

	cars, err := s.svc.SearchAvailable(ctx, day)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return false
	}
	if err == nil {
		s.cars = cars
	}
	s.mu.Unlock()

	if err != nil {
		s.alert(Alert{Title: AlertError, Message: err.Error()})
		return false
	}
	return true
}

// ToggleSort switches between backend order and make/model order without re-querying.
func (s *SearchScreen) ToggleSort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorted = !s.sorted
	return s.sorted
}

func (s *SearchScreen) Sorted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted
}

// Cars is the list as displayed.
func (s *SearchScreen) Cars() []domain.Car {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carsLocked()
}

func (s *SearchScreen) carsLocked() []domain.Car {
	if s.sorted {
		return domain.SortCarsByMakeModel(s.cars)
	}
	out := make([]domain.Car, len(s.cars))
	copy(out, s.cars)
	return out
}

// Book opens the confirmation for the i-th displayed car (0-based), pre-filling the renter
// name with the user's email.
func (s *SearchScreen) Book(i int) error {
	u, _ := s.user()

	s.mu.Lock()
	defer s.mu.Unlock()
	cars := s.carsLocked()
	if i < 0 || i >= len(cars) {
		return fmt.Errorf("no car #%d in the list", i+1)
	}
	s.confirm = &Confirmation{Car: cars[i], Day: s.dayLocked(), RenterName: u.Email}
	return nil
}

func (s *SearchScreen) Confirmation() (Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm == nil {
		return Confirmation{}, false
	}
	return *s.confirm, true
}

func (s *SearchScreen) SetRenterName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm != nil {
		s.confirm.RenterName = name
	}
}

func (s *SearchScreen) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = nil
}

// Confirm books the car in the open confirmation. On success the dialog closes, a "Booked"
// alert is raised and the search re-runs; on failure a "Failed" alert is raised and the
// dialog stays open.
func (s *SearchScreen) Confirm(ctx context.Context) bool {
	u, ok := s.user()
	if !ok {
		return false
	}
	s.mu.Lock()
	if s.confirm == nil {
		s.mu.Unlock()
		return false
	}
	c := *s.confirm
	s.mu.Unlock()

	_, err := s.bookings.CreateBooking(ctx, booking.CreateBookingInput{
		CarID:      c.Car.ID,
		Day:        c.Day,
		RenterName: c.RenterName,
		User:       u,
	})
	if err != nil {
		s.alert(Alert{Title: AlertFailed, Message: err.Error()})
		return false
	}

	s.mu.Lock()
	s.confirm = nil
	s.mu.Unlock()
	s.alert(Alert{Title: AlertBooked, Message: "Car booked for " + c.Day.String()})
	s.Search(ctx)
	return true
}

func (s *SearchScreen) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day = domain.Day{}
	s.cars = nil
	s.sorted = false
	s.confirm = nil
	s.seq++
}
