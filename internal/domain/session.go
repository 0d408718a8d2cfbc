package domain

import "time"

// User is the read-only projection of the signed-in account.
type User struct {
	ID    UserID
	Email string
}

// Session is the client's projection of an auth provider session.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	User         User
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
