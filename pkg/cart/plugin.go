package cart

import "context"

// Plugin extends a Store with functionality that runs for the lifetime of
// an activation.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize is called during Start, after the store entered
	// StateLoading. A returned error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop, after pending writes were flushed.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	// Key is the storage key of the cart
	Key string

	// Path is the file backing the store, or empty when the backend is
	// not file based
	Path string

	// Store is the store being started
	Store *Store

	// Logger is the store logger
	Logger Logger
}

// pather is implemented by file based backends.
type pather interface {
	Path() string
}
