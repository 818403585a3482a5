package ports

import "context"

// KVStore is the persistent key-value store the cart is written to.
// Values are opaque strings; the store never interprets them.
type KVStore interface {
	// Get returns the value stored under key.
	// found is false and err is nil when the key has never been written.
	// err is reserved for actual read failures.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	// Implementations must not leave a partially written value behind.
	Set(ctx context.Context, key, value string) error

	// Close releases the resources held by the store.
	Close() error
}
