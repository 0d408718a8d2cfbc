// Package keychain stores secrets in the OS credential store (macOS Keychain, Windows
// Credential Manager, the freedesktop Secret Service on Linux).
package keychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

// DefaultService is the credential-store service name entries are filed under.
const DefaultService = "car-rental-client"

const availabilityKey = "availability-check"

// Store is a securestore.Store; each key is one credential under service.
type Store struct {
	service string
}

func New(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

// Available reports whether the credential store answers at all (e.g. a Linux session
// without a Secret Service does not).
func (s *Store) Available(ctx context.Context) error {
	if _, _, err := s.Get(ctx, availabilityKey); err != nil {
		return fmt.Errorf("keychain unavailable: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if !securestore.ValidKey(key) {
		return "", false, securestore.ErrInvalidKey
	}
	v, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !securestore.ValidKey(key) {
		return securestore.ErrInvalidKey
	}
	return keyring.Set(s.service, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !securestore.ValidKey(key) {
		return securestore.ErrInvalidKey
	}
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
