// Package cartstore opens a persistent shopping cart on one of the bundled
// backends.
//
// Example usage:
//
//	cfg := cartstore.DefaultConfig()
//	cfg.DataDir = "/var/lib/shop"
//
//	store, err := cartstore.Open(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	if err := store.Start(ctx); err != nil {
//	    return err
//	}
//	defer store.Stop()
//
// The returned store owns its backend: Start opens it and Stop closes it.
// Use pkg/cart directly to run a store on a backend you manage yourself.
package cartstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gomarket/cartstore/internal/adapters/bunt"
	"github.com/gomarket/cartstore/internal/adapters/fs"
	"github.com/gomarket/cartstore/internal/adapters/memory"
	"github.com/gomarket/cartstore/internal/adapters/redis"
	"github.com/gomarket/cartstore/pkg/cart"
	"github.com/gomarket/cartstore/pkg/log"
)

// Backend names a bundled KVStore implementation.
type Backend string

const (
	// BackendBunt stores the cart in an embedded buntdb file (default).
	BackendBunt Backend = "bunt"

	// BackendFile stores the cart in a JSON object file.
	BackendFile Backend = "file"

	// BackendRedis stores the cart in a redis server.
	BackendRedis Backend = "redis"

	// BackendMemory keeps the cart in process memory only.
	BackendMemory Backend = "memory"
)

// BuntFileName is the database file created in DataDir by BackendBunt.
const BuntFileName = "cart.db"

// Config selects and configures the backend of a cart store.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Backend selects the storage implementation. Default: bunt
	Backend Backend

	// DataDir holds the files of the bunt and file backends.
	// Default: ~/.gomarket/cartstore
	DataDir string

	// RedisAddr is a host:port or a redis:// URL. Required for BackendRedis.
	RedisAddr string

	RedisPassword string
	RedisDB       int

	// RedisPrefix is prepended to the storage key
	RedisPrefix string

	// Key is the storage key. Default: "@goMarket:products"
	Key string

	// FlushTimeout bounds how long Stop waits for pending writes. Default: 5s
	FlushTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendBunt,
		DataDir:      DefaultDataDir(),
		Key:          cart.DefaultKey,
		FlushTimeout: cart.FlushTimeout,
	}
}

// DefaultDataDir returns ~/.gomarket/cartstore, or "" when the home
// directory cannot be determined.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gomarket", "cartstore")
	}
	return ""
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendBunt, BackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data dir is required for backend %s", cart.ErrInvalidConfig, c.Backend)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis addr is required for backend redis", cart.ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", cart.ErrInvalidConfig, c.Backend)
	}
	if c.Key == "" {
		return fmt.Errorf("%w: key is required", cart.ErrInvalidConfig)
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("%w: flush timeout must be positive", cart.ErrInvalidConfig)
	}
	return nil
}

// OpenBackend opens the KVStore selected by cfg. The caller must close it.
func OpenBackend(ctx context.Context, cfg Config, logger log.Logger) (cart.KVStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	switch cfg.Backend {
	case BackendBunt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		kv, err := bunt.Open(filepath.Join(cfg.DataDir, BuntFileName))
		if err != nil {
			return nil, err
		}
		return kv, nil
	case BackendFile:
		return fs.NewFileStore(cfg.DataDir), nil
	case BackendRedis:
		kv, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return memory.NewStore(), nil
	}
}

// Open validates cfg and returns a stopped store that opens the configured
// backend on Start and closes it on Stop. opts are applied after the
// options derived from cfg.
func Open(cfg Config, logger log.Logger, opts ...cart.Option) (*cart.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	all := append([]cart.Option{
		cart.WithKey(cfg.Key),
		cart.WithFlushTimeout(cfg.FlushTimeout),
		cart.WithLogger(logger),
	}, opts...)

	return cart.NewOwned(func(ctx context.Context) (cart.KVStore, error) {
		kv, err := OpenBackend(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("backend opened", log.String("backend", string(cfg.Backend)))
		return kv, nil
	}, all...)
}
