package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for renter name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims surrounding whitespace. Case is preserved; the auth provider owns comparison rules.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}
