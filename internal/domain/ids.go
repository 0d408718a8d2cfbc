package domain

// UserID is the auth provider's identifier for an account (the token "sub").
// We model it as an opaque identifier: its format is controlled by the provider.
type UserID string

// CarID identifies a car in the backend catalog.
type CarID string

// BookingID identifies a booking record.
type BookingID string
