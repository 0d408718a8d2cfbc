package bookingrepo

import "errors"

var (
	// ErrConflict indicates the (car, booking date) uniqueness constraint rejected the write.
	ErrConflict = errors.New("booking already exists for car and date")

	// ErrCarNotFound indicates the booking references a car the data store does not know.
	ErrCarNotFound = errors.New("car not found")
)
