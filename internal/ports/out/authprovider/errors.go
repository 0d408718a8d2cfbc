package authprovider

import "errors"

var (
	// ErrNoSession indicates nobody is signed in (or the stored session could not be refreshed).
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredentials indicates the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrUserAlreadyExists indicates sign-up was attempted for a registered email.
	ErrUserAlreadyExists = errors.New("user already registered")
)
