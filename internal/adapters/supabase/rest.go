package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/authprovider"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/availability"
	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/bookingrepo"
)

const rentalSelect = "id,user_id,car_id,booking_date,expected_return_date,renter_name,car:car_id(id,make,model,color,image_url)"

// TokenSource yields the bearer token for row-level-security scoped requests.
// An empty token means anonymous access (the anon key is sent instead).
type TokenSource func(ctx context.Context) (string, error)

// SessionTokens draws tokens from p's current session, refreshing as needed.
func SessionTokens(p authprovider.Provider) TokenSource {
	return func(ctx context.Context) (string, error) {
		sess, err := p.GetSession(ctx)
		if errors.Is(err, authprovider.ErrNoSession) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return sess.AccessToken, nil
	}
}

// Bookings implements bookingrepo.Repository over /rest/v1/bookings and
// availability.Finder over the available_cars RPC.
type Bookings struct {
	client *Client
	tokens TokenSource
}

var (
	_ bookingrepo.Repository = (*Bookings)(nil)
	_ availability.Finder    = (*Bookings)(nil)
)

func NewBookings(client *Client, tokens TokenSource) *Bookings {
	if tokens == nil {
		tokens = func(context.Context) (string, error) { return "", nil }
	}
	return &Bookings{client: client, tokens: tokens}
}

type bookingInsert struct {
	ID                 string                                `json:"id"`
	UserID             string                                `json:"user_id"`
	CarID              string                                `json:"car_id"`
	BookingDate        openapi_types.Date                    `json:"booking_date"`
	ExpectedReturnDate nullable.Nullable[openapi_types.Date] `json:"expected_return_date,omitempty"`
	RenterName         string                                `json:"renter_name"`
}

type carRow struct {
	ID       string                   `json:"id"`
	Make     string                   `json:"make"`
	Model    string                   `json:"model"`
	Color    string                   `json:"color"`
	ImageURL nullable.Nullable[string] `json:"image_url"`
}

func (r carRow) domain() domain.Car {
	c := domain.Car{
		ID:    domain.CarID(r.ID),
		Make:  r.Make,
		Model: r.Model,
		Color: r.Color,
	}
	if v, err := r.ImageURL.Get(); err == nil {
		c.ImageURL = &v
	}
	return c
}

type bookingRow struct {
	ID                 string                                `json:"id"`
	UserID             string                                `json:"user_id"`
	CarID              string                                `json:"car_id"`
	BookingDate        openapi_types.Date                    `json:"booking_date"`
	ExpectedReturnDate nullable.Nullable[openapi_types.Date] `json:"expected_return_date"`
	RenterName         nullable.Nullable[string]             `json:"renter_name"`
	Car                *carRow                               `json:"car"`
}

func (r bookingRow) domain() domain.Rental {
	out := domain.Rental{
		Booking: domain.Booking{
			ID:          domain.BookingID(r.ID),
			UserID:      domain.UserID(r.UserID),
			CarID:       domain.CarID(r.CarID),
			BookingDate: domain.DayOf(r.BookingDate.Time),
		},
	}
	if d, err := r.ExpectedReturnDate.Get(); err == nil {
		day := domain.DayOf(d.Time)
		out.ExpectedReturnDate = &day
	}
	if n, err := r.RenterName.Get(); err == nil {
		out.RenterName = n
	}
	if r.Car != nil {
		out.Car = r.Car.domain()
	}
	out.Car.ID = out.CarID
	return out
}

func (b *Bookings) Create(ctx context.Context, nb bookingrepo.NewBooking) error {
	tok, err := b.tokens(ctx)
	if err != nil {
		return err
	}
	row := bookingInsert{
		ID:          string(nb.ID),
		UserID:      string(nb.UserID),
		CarID:       string(nb.CarID),
		BookingDate: openapi_types.Date{Time: nb.BookingDate.Time()},
		RenterName:  nb.RenterName,
	}
	if nb.ExpectedReturnDate != nil {
		row.ExpectedReturnDate = nullable.NewNullableWithValue(openapi_types.Date{Time: nb.ExpectedReturnDate.Time()})
	}

	err = b.client.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/bookings",
		bearer:  tok,
		headers: map[string]string{"Prefer": "return=minimal"},
		body:    row,
	}, nil)
	return mapRESTError(err)
}

func (b *Bookings) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.Rental, error) {
	tok, err := b.tokens(ctx)
	if err != nil {
		return nil, err
	}
	var rows []bookingRow
	err = b.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/bookings",
		query: url.Values{
			"select":  {rentalSelect},
			"user_id": {"eq." + string(userID)},
			"order":   {"booking_date.asc,id.asc"},
		},
		bearer: tok,
	}, &rows)
	if err != nil {
		return nil, mapRESTError(err)
	}

	out := make([]domain.Rental, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	domain.SortRentalsByDate(out)
	return out, nil
}

func (b *Bookings) AvailableCars(ctx context.Context, day domain.Day) ([]domain.Car, error) {
	tok, err := b.tokens(ctx)
	if err != nil {
		return nil, err
	}
	var rows []carRow
	err = b.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/available_cars",
		bearer: tok,
		body:   map[string]openapi_types.Date{"day": {Time: day.Time()}},
	}, &rows)
	if err != nil {
		return nil, mapRESTError(err)
	}

	out := make([]domain.Car, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	ae, ok := AsAPIError(err)
	if !ok {
		return err
	}
	switch ae.Code {
	case codeUniqueViolation:
		return bookingrepo.ErrConflict
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", bookingrepo.ErrCarNotFound, ae)
	}
	return err
}
