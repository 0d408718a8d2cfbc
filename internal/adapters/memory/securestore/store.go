package securestore

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/car-rental-client/internal/ports/out/securestore"
)

// Store is an in-memory implementation of securestore.Store.
// It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]string

	writeErr error
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// SetWriteError makes subsequent Set and Delete calls fail with err (nil restores writes).
func (s *Store) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	if !securestore.ValidKey(key) {
		return "", false, securestore.ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_ = ctx
	if !securestore.ValidKey(key) {
		return securestore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if !securestore.ValidKey(key) {
		return securestore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	delete(s.data, key)
	return nil
}
