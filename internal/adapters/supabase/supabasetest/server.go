// Package supabasetest is an in-process fake of the hosted backend's auth, REST and RPC
// endpoints, for exercising the supabase adapter end to end.
package supabasetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
	"github.com/Overland-East-Bay/car-rental-client/internal/platform/auth/jwks_testutil"
)

const (
	DefaultAnonKey = "anon-test-key"
	// ServiceRoleKey bypasses row-level security when sent as the bearer token.
	ServiceRoleKey = "service-role-test-key"
)

type Option func(*Server)

// WithKeypair makes access tokens RS256 JWTs signed by kp and serves the matching JWKS
// at /auth/v1/.well-known/jwks.json.
func WithKeypair(kp jwks_testutil.Keypair) Option {
	return func(s *Server) { s.keypair = &kp }
}

// WithClock sets the time used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

type account struct {
	id       string
	email    string
	password string
}

type failure struct {
	status int
	body   string
}

// Server is safe for concurrent use.
type Server struct {
	srv     *httptest.Server
	base    string
	AnonKey string

	keypair *jwks_testutil.Keypair
	now     func() time.Time
	ttl     time.Duration

	mu                  sync.Mutex
	accounts            map[string]*account // keyed by lower-cased email
	access              map[string]string   // access token -> user id
	refresh             map[string]string   // refresh token -> user id
	cars                []domain.Car
	bookings            []domain.Booking
	requireConfirmation bool
	failures            map[string]failure
	hits                map[string]int
}

// New returns a fake that is not listening; serve Handler at baseURL. It backs the
// standalone dev backend, where there is no test to tie the lifetime to.
func New(baseURL string, opts ...Option) *Server {
	s := &Server{
		base:     strings.TrimRight(baseURL, "/"),
		AnonKey:  DefaultAnonKey,
		now:      time.Now,
		ttl:      time.Hour,
		accounts: make(map[string]*account),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		failures: make(map[string]failure),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer starts a fake backend that is closed when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := New("", opts...)
	s.srv = httptest.NewServer(s.Handler())
	s.base = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) Handler() http.Handler { return s.routes() }

func (s *Server) URL() string { return s.base }

// Issuer is the iss claim of minted access tokens.
func (s *Server) Issuer() string { return s.base + "/auth/v1" }

func (s *Server) AddUser(id, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	s.accounts[strings.ToLower(email)] = &account{id: id, email: email, password: password}
}

func (s *Server) AddCar(c domain.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars = append(s.cars, c)
}

// SetRequireConfirmation makes sign-up answer with a bare user and no session.
func (s *Server) SetRequireConfirmation(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireConfirmation = v
}

// FailNext makes the next request to method+path answer status with body.
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

// RevokeAll invalidates every issued access and refresh token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
	s.refresh = make(map[string]string)
}

// Hits reports how many requests reached method+path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// Bookings returns a snapshot of stored bookings in insertion order.
func (s *Server) Bookings() []domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0, len(s.bookings))
	return append(out, s.bookings...)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countAndInject)

	r.Route("/auth/v1", func(r chi.Router) {
		// The key set is public.
		r.Get("/.well-known/jwks.json", s.handleJWKS)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/token", s.handleToken)
			r.Post("/signup", s.handleSignUp)
			r.Post("/logout", s.handleLogout)
			r.Get("/user", s.handleUser)
		})
	})
	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/bookings", s.handleListBookings)
		r.Post("/bookings", s.handleInsertBooking)
		r.Post("/rpc/available_cars", s.handleAvailableCars)
	})
	return r
}

func (s *Server) countAndInject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.hits[key]++
		f, ok := s.failures[key]
		if ok {
			delete(s.failures, key)
		}
		s.mu.Unlock()

		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != s.AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

func restError(w http.ResponseWriter, status int, code, msg, details string) {
	body := map[string]any{"code": code, "message": msg, "details": nil, "hint": nil}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// userFor resolves the caller's access token; ok=false for the anon key or unknown tokens.
func (s *Server) userFor(r *http.Request) (*account, bool) {
	tok := bearer(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.access[tok]
	if !ok {
		return nil, false
	}
	for _, a := range s.accounts {
		if a.id == uid {
			return a, true
		}
	}
	return nil, false
}

type userJSON struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
	Role  string `json:"role"`
}

func toUserJSON(a *account) userJSON {
	return userJSON{ID: a.id, Email: a.email, Aud: "authenticated", Role: "authenticated"}
}

// issueLocked mints a token pair for a. Callers hold s.mu.
func (s *Server) issueLocked(a *account) (map[string]any, error) {
	now := s.now()
	var access string
	if s.keypair != nil {
		tok, err := jwks_testutil.MintRS256JWT(*s.keypair, s.Issuer(), "authenticated", a.id, a.email, now, s.ttl, nil)
		if err != nil {
			return nil, err
		}
		access = tok
	} else {
		access = "at-" + uuid.NewString()
	}
	refresh := "rt-" + uuid.NewString()
	s.access[access] = a.id
	s.refresh[refresh] = a.id
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(s.ttl / time.Second),
		"expires_at":    now.Add(s.ttl).Unix(),
		"refresh_token": refresh,
		"user":          toUserJSON(a),
	}, nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		authError(w, http.StatusBadRequest, "bad_json", "could not parse request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var acct *account
	switch r.URL.Query().Get("grant_type") {
	case "password":
		a, ok := s.accounts[strings.ToLower(body.Email)]
		if !ok || a.password != body.Password {
			authError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		acct = a
	case "refresh_token":
		uid, ok := s.refresh[body.RefreshToken]
		if !ok {
			authError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		// Refresh tokens are single use.
		delete(s.refresh, body.RefreshToken)
		for _, a := range s.accounts {
			if a.id == uid {
				acct = a
			}
		}
		if acct == nil {
			authError(w, http.StatusBadRequest, "user_not_found", "User not found")
			return
		}
	default:
		authError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type")
		return
	}

	resp, err := s.issueLocked(acct)
	if err != nil {
		authError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		authError(w, http.StatusBadRequest, "validation_failed", "Signup requires a valid email and password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(body.Email)
	if _, ok := s.accounts[key]; ok {
		authError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	a := &account{id: uuid.NewString(), email: body.Email, password: body.Password}
	s.accounts[key] = a

	if s.requireConfirmation {
		u := toUserJSON(a)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                   u.ID,
			"email":                u.Email,
			"aud":                  u.Aud,
			"role":                 u.Role,
			"confirmation_sent_at": s.now().UTC().Format(time.RFC3339),
		})
		return
	}
	resp, err := s.issueLocked(a)
	if err != nil {
		authError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok := bearer(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.access[tok]
	if !ok {
		authError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	for k, v := range s.access {
		if v == uid {
			delete(s.access, k)
		}
	}
	for k, v := range s.refresh {
		if v == uid {
			delete(s.refresh, k)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	a, ok := s.userFor(r)
	if !ok {
		authError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(a))
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if s.keypair == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jwks_testutil.JWKSJSON([]jwks_testutil.Keypair{*s.keypair}))
}

type carJSON struct {
	ID       string  `json:"id"`
	Make     string  `json:"make"`
	Model    string  `json:"model"`
	Color    string  `json:"color"`
	ImageURL *string `json:"image_url"`
}

func toCarJSON(c domain.Car) carJSON {
	return carJSON{ID: string(c.ID), Make: c.Make, Model: c.Model, Color: c.Color, ImageURL: c.ImageURL}
}

type bookingJSON struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"user_id"`
	CarID              string   `json:"car_id"`
	BookingDate        string   `json:"booking_date"`
	ExpectedReturnDate *string  `json:"expected_return_date"`
	RenterName         string   `json:"renter_name"`
	Car                *carJSON `json:"car,omitempty"`
}

func (s *Server) carLocked(id domain.CarID) (domain.Car, bool) {
	for _, c := range s.cars {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Car{}, false
}

// handleListBookings supports the user_id=eq.<id> filter. Rows are limited to the caller's own
// bookings, as the table's row-level security policy does; anonymous callers see none.
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	caller, authed := s.userFor(r)
	service := bearer(r) == ServiceRoleKey
	q := r.URL.Query()
	var userFilter string
	if v := q.Get("user_id"); v != "" {
		if !strings.HasPrefix(v, "eq.") {
			restError(w, http.StatusBadRequest, "PGRST100", "unsupported filter on user_id", "")
			return
		}
		userFilter = strings.TrimPrefix(v, "eq.")
	}
	embedCar := strings.Contains(q.Get("select"), "car:car_id(")

	s.mu.Lock()
	rows := make([]bookingJSON, 0)
	for _, b := range s.bookings {
		if !service && (!authed || string(b.UserID) != caller.id) {
			continue
		}
		if userFilter != "" && string(b.UserID) != userFilter {
			continue
		}
		row := bookingJSON{
			ID:          string(b.ID),
			UserID:      string(b.UserID),
			CarID:       string(b.CarID),
			BookingDate: b.BookingDate.String(),
			RenterName:  b.RenterName,
		}
		if b.ExpectedReturnDate != nil {
			v := b.ExpectedReturnDate.String()
			row.ExpectedReturnDate = &v
		}
		if embedCar {
			if c, ok := s.carLocked(b.CarID); ok {
				cj := toCarJSON(c)
				row.Car = &cj
			}
		}
		rows = append(rows, row)
	}
	s.mu.Unlock()

	if strings.HasPrefix(q.Get("order"), "booking_date.asc") {
		sortRows(rows)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleInsertBooking(w http.ResponseWriter, r *http.Request) {
	caller, authed := s.userFor(r)
	service := bearer(r) == ServiceRoleKey

	var in bookingJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		restError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json", "")
		return
	}
	if !service && (!authed || in.UserID != caller.id) {
		restError(w, http.StatusForbidden, "42501", `new row violates row-level security policy for table "bookings"`, "")
		return
	}
	day, err := domain.ParseDay(in.BookingDate)
	if err != nil {
		restError(w, http.StatusBadRequest, "22007", fmt.Sprintf("invalid input syntax for type date: %q", in.BookingDate), "")
		return
	}
	ret := day.AddDays(1)
	if in.ExpectedReturnDate != nil {
		d, err := domain.ParseDay(*in.ExpectedReturnDate)
		if err != nil {
			restError(w, http.StatusBadRequest, "22007", fmt.Sprintf("invalid input syntax for type date: %q", *in.ExpectedReturnDate), "")
			return
		}
		ret = d
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carLocked(domain.CarID(in.CarID)); !ok {
		restError(w, http.StatusConflict, "23503",
			`insert or update on table "bookings" violates foreign key constraint "bookings_car_id_fkey"`,
			fmt.Sprintf(`Key (car_id)=(%s) is not present in table "cars".`, in.CarID))
		return
	}
	for _, b := range s.bookings {
		if b.ID == domain.BookingID(in.ID) {
			restError(w, http.StatusConflict, "23505", `duplicate key value violates unique constraint "bookings_pkey"`,
				fmt.Sprintf("Key (id)=(%s) already exists.", in.ID))
			return
		}
		if string(b.CarID) == in.CarID && b.BookingDate == day {
			restError(w, http.StatusConflict, "23505", `duplicate key value violates unique constraint "bookings_car_day_unique"`,
				fmt.Sprintf("Key (car_id, booking_date)=(%s, %s) already exists.", in.CarID, day))
			return
		}
	}
	s.bookings = append(s.bookings, domain.Booking{
		ID:                 domain.BookingID(in.ID),
		UserID:             domain.UserID(in.UserID),
		CarID:              domain.CarID(in.CarID),
		BookingDate:        day,
		ExpectedReturnDate: &ret,
		RenterName:         in.RenterName,
	})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleAvailableCars(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Day string `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		restError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json", "")
		return
	}
	day, err := domain.ParseDay(in.Day)
	if err != nil {
		restError(w, http.StatusBadRequest, "22007", fmt.Sprintf("invalid input syntax for type date: %q", in.Day), "")
		return
	}

	s.mu.Lock()
	booked := make(map[domain.CarID]bool)
	for _, b := range s.bookings {
		if b.BookingDate == day {
			booked[b.CarID] = true
		}
	}
	out := make([]carJSON, 0, len(s.cars))
	for _, c := range s.cars {
		if !booked[c.ID] {
			out = append(out, toCarJSON(c))
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func sortRows(rows []bookingJSON) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BookingDate != rows[j].BookingDate {
			return rows[i].BookingDate < rows[j].BookingDate
		}
		return rows[i].ID < rows[j].ID
	})
}
