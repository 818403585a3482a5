// Package redis implements a KVStore on a redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/gomarket/cartstore/internal/ports"
	"github.com/gomarket/cartstore/pkg/log"
)

// Config holds connection settings for the redis backend.
type Config struct {
	// Addr is "host:port" or a redis:// URL
	Addr string

	// Password authenticates the connection (ignored when Addr is a URL carrying one)
	Password string

	// DB selects the logical database
	DB int

	// Prefix is prepended to every key
	Prefix string

	// PingRetries bounds connection attempts made by Open.
	// Default: 5
	PingRetries int

	// DialTimeout bounds a single connection attempt.
	// Default: 3 seconds
	DialTimeout time.Duration
}

// Store implements ports.KVStore on redis.
// Every command runs through a circuit breaker so an unreachable server fails
// fast instead of stalling each save for a full timeout.
type Store struct {
	client *goredis.Client
	cb     *gobreaker.CircuitBreaker
	prefix string
	logger log.Logger
}

// Open connects to redis and verifies the connection with a ping,
// retrying with exponential backoff.
func Open(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.PingRetries <= 0 {
		cfg.PingRetries = 5
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	opts, err := goredis.ParseURL(cfg.Addr)
	if err != nil {
		opts = &goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.DialTimeout = cfg.DialTimeout

	s := NewStore(goredis.NewClient(opts), cfg.Prefix, logger)
	if err := s.ping(ctx, cfg.PingRetries, cfg.DialTimeout); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing client without checking connectivity.
func NewStore(client *goredis.Client, prefix string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	st := gobreaker.Settings{
		Name:        "cartstore-redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("redis circuit breaker state changed",
				log.String("breaker", name),
				log.String("from", from.String()),
				log.String("to", to.String()),
			)
		},
	}
	return &Store{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		prefix: prefix,
		logger: logger,
	}
}

// Get returns the value stored under key. redis.Nil maps to found=false.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	found := true
	v, err := s.cb.Execute(func() (interface{}, error) {
		val, err := s.client.Get(ctx, s.prefix+key).Result()
		if errors.Is(err, goredis.Nil) {
			found = false
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), found, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, s.prefix+key, value, 0).Err()
	})
	return err
}

// Close closes the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ping(ctx context.Context, retries int, timeout time.Duration) error {
	wait := 200 * time.Millisecond
	var err error
	for i := 0; i < retries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = s.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			s.logger.Debug("connected to redis", log.Int("attempt", i+1))
			return nil
		}

		s.logger.Warn("redis ping failed",
			log.Int("attempt", i+1),
			log.Int("retries", retries),
			log.Err(err),
		)
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > 5*time.Second {
			wait = 5 * time.Second
		}
	}
	return fmt.Errorf("connect to redis after %d attempts: %w", retries, err)
}

var _ ports.KVStore = (*Store)(nil)
