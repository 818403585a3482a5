// Package bunt implements the cart store's default device-local storage on buntdb.
package bunt

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/gomarket/cartstore/internal/ports"
)

// InMemory is the path that keeps the database in memory only.
const InMemory = ":memory:"

// Store implements ports.KVStore on an embedded buntdb database.
type Store struct {
	db   *buntdb.DB
	path string
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key in a single write transaction.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file, or "" for an in-memory database.
func (s *Store) Path() string {
	if s.path == InMemory {
		return ""
	}
	return s.path
}

var _ ports.KVStore = (*Store)(nil)
