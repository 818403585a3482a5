// Package memory implements a process-local KVStore.
package memory

import (
	"context"
	"sync"

	"github.com/gomarket/cartstore/internal/ports"
)

// Store keeps values in a map. Nothing survives the process.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Close() error {
	return nil
}

var _ ports.KVStore = (*Store)(nil)
