package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions of the cart store.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on an active store.
	ErrAlreadyRunning = errors.New("cartstore: already running")

	// ErrNotRunning is returned when Stop() is called on an inactive store.
	ErrNotRunning = errors.New("cartstore: not running")

	// ErrShutdownTimeout is returned when pending writes did not settle in time.
	ErrShutdownTimeout = errors.New("cartstore: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("cartstore: invalid configuration")

	// ErrUsage matches every *UsageError.
	ErrUsage = errors.New("cartstore: usage error")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("cartstore: storage error")
)

// UsageError reports cart access outside an active store lifecycle.
type UsageError struct {
	// Op is the operation attempted (e.g. "AddToCart")
	Op string

	// Reason describes why the access is invalid
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("cartstore: %s: %s", e.Op, e.Reason)
}

// Is makes errors.Is(err, ErrUsage) hold.
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// Storage operations reported in StorageError.Op.
const (
	StorageOpGet    = "get"
	StorageOpSet    = "set"
	StorageOpDecode = "decode"
	StorageOpEncode = "encode"
)

// StorageError reports a failed read, write or (de)serialization of the
// persisted cart. It never implies the in-memory cart changed.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cartstore: storage %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying backend or codec error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) hold.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
