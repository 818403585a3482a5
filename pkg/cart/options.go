package cart

import (
	"time"

	"github.com/gomarket/cartstore/internal/codec"
	"github.com/gomarket/cartstore/pkg/log"
)

// Option configures optional behavior of a Store.
type Option func(*options)

// options holds the optional configuration for a Store instance.
type options struct {
	key            string
	codec          Codec
	logger         Logger
	eventHandler   EventHandler
	plugins        []Plugin
	flushTimeout   time.Duration
	retries        int
	backoffInitial time.Duration
	backoffMax     time.Duration
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		key:            DefaultKey,
		codec:          codec.NewJSON(),
		logger:         log.NewNoopLogger(),
		flushTimeout:   FlushTimeout,
		retries:        3,
		backoffInitial: 100 * time.Millisecond,
		backoffMax:     2 * time.Second,
	}
}

// WithKey sets the storage key. Default: "@goMarket:products".
func WithKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithCodec replaces the JSON codec used for the stored value.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for store events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the store starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithFlushTimeout bounds how long Stop waits for the load and for pending
// writes. Default: 5 seconds.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		o.flushTimeout = d
	}
}

// WithSaveRetry configures retries of failed writes. A newer cart
// snapshot always supersedes a write that is being retried.
// Default: 3 retries, backoff from 100ms doubling up to 2s.
func WithSaveRetry(retries int, initial, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retries = retries
		o.backoffInitial = initial
		o.backoffMax = maxDelay
	}
}
