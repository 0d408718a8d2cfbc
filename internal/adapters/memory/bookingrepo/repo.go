package bookingrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
)

type carDay struct {
	car domain.CarID
	day domain.Day
}

// Repo is an in-memory implementation of bookingrepo.Repository backed by a car catalog.
// It enforces the (car, booking date) uniqueness the real data store enforces.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	cars     map[domain.CarID]domain.Car
	carOrder []domain.CarID

	byID      map[domain.BookingID]domain.Booking
	byCarDay  map[carDay]domain.BookingID
	idsByUser map[domain.UserID][]domain.BookingID
}

func NewRepo(cars ...domain.Car) *Repo {
	r := &Repo{
		cars:      make(map[domain.CarID]domain.Car),
		byID:      make(map[domain.BookingID]domain.Booking),
		byCarDay:  make(map[carDay]domain.BookingID),
		idsByUser: make(map[domain.UserID][]domain.BookingID),
	}
	for _, c := range cars {
		r.AddCar(c)
	}
	return r
}

// AddCar registers (or replaces) a car in the catalog.
func (r *Repo) AddCar(c domain.Car) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cars[c.ID]; !ok {
		r.carOrder = append(r.carOrder, c.ID)
	}
	r.cars[c.ID] = cloneCar(c)
}

func (r *Repo) Create(ctx context.Context, b bookingrepo.NewBooking) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cars[b.CarID]; !ok {
		return bookingrepo.ErrCarNotFound
	}
	key := carDay{car: b.CarID, day: b.BookingDate}
	if _, ok := r.byCarDay[key]; ok {
		return bookingrepo.ErrConflict
	}
	if _, ok := r.byID[b.ID]; ok {
		return bookingrepo.ErrConflict
	}

	ret := b.BookingDate.AddDays(1)
	if b.ExpectedReturnDate != nil {
		ret = *b.ExpectedReturnDate
	}
	r.byID[b.ID] = domain.Booking{
		ID:                 b.ID,
		UserID:             b.UserID,
		CarID:              b.CarID,
		BookingDate:        b.BookingDate,
		ExpectedReturnDate: &ret,
		RenterName:         b.RenterName,
	}
	r.byCarDay[key] = b.ID
	r.idsByUser[b.UserID] = append(r.idsByUser[b.UserID], b.ID)
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Rental, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.idsByUser[userID]
	out := make([]domain.Rental, 0, len(ids))
	for _, id := range ids {
		b := r.byID[id]
		out = append(out, domain.Rental{
			Booking: cloneBooking(b),
			Car:     cloneCar(r.cars[b.CarID]),
		})
	}
	domain.SortRentalsByDate(out)
	return out, nil
}

// AvailableCars returns catalog cars with no booking on day, in catalog insertion order.
func (r *Repo) AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Car, 0, len(r.carOrder))
	for _, id := range r.carOrder {
		if _, booked := r.byCarDay[carDay{car: id, day: day}]; booked {
			continue
		}
		out = append(out, cloneCar(r.cars[id]))
	}
	return out, nil
}

// BookingsOn returns the bookings for day ordered by car ID; used by demos and tests.
func (r *Repo) BookingsOn(day domain.Day) []domain.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for k, id := range r.byCarDay {
		if k.day == day {
			out = append(out, cloneBooking(r.byID[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarID < out[j].CarID })
	return out
}

func cloneCar(c domain.Car) domain.Car {
	out := c
	if c.ImageURL != nil {
		v := *c.ImageURL
		out.ImageURL = &v
	}
	return out
}

func cloneBooking(b domain.Booking) domain.Booking {
	out := b
	if b.ExpectedReturnDate != nil {
		v := *b.ExpectedReturnDate
		out.ExpectedReturnDate = &v
	}
	return out
}
