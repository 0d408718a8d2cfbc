package securestore

import (
	"context"
	"errors"
)

// ErrInvalidKey indicates a key outside the allowed alphabet [A-Za-z0-9._-].
var ErrInvalidKey = errors.New("invalid secure store key")

// Store is durable, private on-device key/value storage.
type Store interface {
	// Get returns the value for key; ok=false means the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidKey reports whether key may be used with a Store.
func ValidKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return key != "." && key != ".."
}
