package domain

// Booking reserves one car for one calendar day.
//
// The backend enforces at most one booking per (CarID, BookingDate).
type Booking struct {
	ID          BookingID
	UserID      UserID
	CarID       CarID
	BookingDate Day
	// ExpectedReturnDate is assigned by the data store when omitted; nil means unknown.
	ExpectedReturnDate *Day
	RenterName         string
}

// Rental is a booking joined with the attributes of its car, as listed on the rentals screen.
type Rental struct {
	Booking
	Car Car
}
