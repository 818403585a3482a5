package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gomarket/cartstore/internal/app"
	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/pkg/log"
)

// Opener opens the backend of a store that owns it.
// It is called on every Start; the backend is closed again by Stop.
type Opener func(ctx context.Context) (KVStore, error)

// Store holds the cart of one client and keeps it in sync with a KVStore.
// Use New or NewOwned to create an instance, then Start to load the stored cart.
// All methods are safe for concurrent use.
type Store struct {
	opts      options
	open      Opener
	lifecycle *app.Lifecycle
	emitter   *eventEmitter
	logger    Logger

	// opMu serializes Start and Stop
	opMu sync.Mutex

	mu       sync.Mutex
	kv       KVStore
	active   bool
	session  *app.Session
	persist  *app.Persister
	ready    <-chan struct{}
	inflight sync.WaitGroup

	cancelLoad context.CancelFunc
}

// New creates a Store backed by kv. The caller keeps ownership of kv;
// Stop does not close it.
// The store is created in StateStopped; call Start to load the stored cart.
func New(kv KVStore, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("%w: nil KVStore", ErrInvalidConfig)
	}
	s, err := newStore(opts)
	if err != nil {
		return nil, err
	}
	s.kv = kv
	return s, nil
}

// NewOwned creates a Store that opens its backend with open on every Start
// and closes it on Stop.
func NewOwned(open Opener, opts ...Option) (*Store, error) {
	if open == nil {
		return nil, fmt.Errorf("%w: nil Opener", ErrInvalidConfig)
	}
	s, err := newStore(opts)
	if err != nil {
		return nil, err
	}
	s.open = open
	return s, nil
}

func newStore(opts []Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case o.key == "":
		return nil, fmt.Errorf("%w: empty storage key", ErrInvalidConfig)
	case o.codec == nil:
		return nil, fmt.Errorf("%w: nil codec", ErrInvalidConfig)
	case o.flushTimeout <= 0:
		return nil, fmt.Errorf("%w: flush timeout must be positive", ErrInvalidConfig)
	case o.retries < 0:
		return nil, fmt.Errorf("%w: save retries must not be negative", ErrInvalidConfig)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}

	emitter := &eventEmitter{handler: o.eventHandler}
	return &Store{
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		emitter:   emitter,
		logger:    o.logger,
		ready:     make(chan struct{}),
	}, nil
}

// Start activates the store and returns immediately.
//
// The store is usable at once with an empty cart while the stored cart is
// read in the background. Mutations applied meanwhile are replayed onto the
// stored cart when it arrives. ctx is used to open the backend and carries
// values to the background work, but canceling it does not end the
// activation; only Stop does. Returns ErrAlreadyRunning if the store is
// already active.
func (s *Store) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}

	s.mu.Lock()
	kv := s.kv
	s.mu.Unlock()
	if s.open != nil {
		opened, err := s.open(ctx)
		if err != nil {
			return fmt.Errorf("cartstore: open backend: %w", err)
		}
		kv = opened
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loadCtx, cancelLoad := context.WithCancel(runCtx)
	persister := app.NewPersister(kv, s.opts.codec, app.PersisterConfig{
		Key:            s.opts.key,
		Retries:        s.opts.retries,
		BackoffInitial: s.opts.backoffInitial,
		BackoffMax:     s.opts.backoffMax,
	}, s.logger, s.emitter)
	session := app.NewSession(persister, s.logger, s.emitter)
	loaded := make(chan struct{})

	s.mu.Lock()
	s.kv = kv
	s.session = session
	s.persist = persister
	s.ready = loaded
	s.cancelLoad = cancelLoad
	s.active = true
	s.mu.Unlock()

	if err := s.lifecycle.TransitionTo(app.StateLoading, "Start() called"); err != nil {
		s.deactivate()
		cancel()
		return err
	}
	s.lifecycle.SetCancel(cancel)

	if n, err := s.initPlugins(runCtx, kv); err != nil {
		_ = s.lifecycle.TransitionTo(app.StateStopping, "plugin init failed")
		s.deactivate()
		s.lifecycle.Cancel()
		s.shutdownPlugins(n)
		s.closeBackend(kv)
		_ = s.lifecycle.TransitionTo(app.StateStopped, "plugin init failed")
		return err
	}

	s.lifecycle.Go(func() { persister.Run(runCtx) })
	s.lifecycle.Go(func() {
		defer close(loaded)
		s.load(loadCtx, kv, session)
	})

	s.logger.Info("cart store started", log.String("key", s.opts.key))
	return nil
}

// Stop ends the activation.
//
// A load still in progress is canceled and the changes made before it are
// dropped. Stop then waits for every pending write, bounded by the flush
// timeout, cancels background work, shuts plugins down in reverse order and
// closes an owned backend. Returns ErrNotRunning if the store is not active
// and ErrShutdownTimeout if pending work did not settle in time.
// A failed final write is reported through OnStorageError and
// LastStorageError, not returned.
func (s *Store) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.lifecycle.CanStop() {
		return ErrNotRunning
	}

	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}

	s.mu.Lock()
	loaded, persister, kv, cancelLoad := s.ready, s.persist, s.kv, s.cancelLoad
	s.mu.Unlock()
	s.deactivate()
	cancelLoad()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.flushTimeout)
	defer cancel()
	err := s.settle(ctx, loaded, persister)

	s.lifecycle.Cancel()
	if werr := s.lifecycle.WaitWithTimeout(s.opts.flushTimeout); werr != nil && err == nil {
		err = werr
	}

	s.shutdownPlugins(len(s.opts.plugins))
	s.closeBackend(kv)

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	s.logger.Info("cart store stopped")
	return err
}

// Status returns the current lifecycle state.
func (s *Store) Status() State {
	return convertState(s.lifecycle.State())
}

// Ready returns a channel that is closed when the current activation has
// finished loading, successfully or not, and entered StateReady. Before the
// first Start the channel is never closed.
func (s *Store) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// WaitLoaded blocks until the stored cart has been loaded or ctx is done.
func (s *Store) WaitLoaded(ctx context.Context) error {
	loaded, _, err := s.current("WaitLoaded")
	if err != nil {
		return err
	}
	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every change made before the call has been written.
// Returns the storage error of the last write, if it failed, or ctx.Err().
func (s *Store) Flush(ctx context.Context) error {
	loaded, persister, err := s.current("Flush")
	if err != nil {
		return err
	}
	select {
	case <-loaded:
	case <-ctx.Done():
		return ctx.Err()
	}
	return persister.Flush(ctx)
}

// LastStorageError returns the most recent storage failure of this store,
// or nil if none occurred.
func (s *Store) LastStorageError() error {
	if serr := s.emitter.lastStorageError(); serr != nil {
		return serr
	}
	return nil
}

// Products returns the entries in cart order. The slice is a copy.
func (s *Store) Products() ([]Entry, error) {
	c, err := s.Cart()
	if err != nil {
		return nil, usageOp(err, "Products")
	}
	return c.Entries(), nil
}

// Cart returns the current cart snapshot.
func (s *Store) Cart() (Cart, error) {
	var c Cart
	err := s.withSession("Cart", func(session *app.Session) {
		c = session.Cart()
	})
	return c, err
}

// Count returns the number of items in the cart, summing quantities.
func (s *Store) Count() (int, error) {
	c, err := s.Cart()
	if err != nil {
		return 0, usageOp(err, "Count")
	}
	return c.TotalQuantity(), nil
}

// Subtotal returns the sum of price times quantity over all entries.
func (s *Store) Subtotal() (decimal.Decimal, error) {
	c, err := s.Cart()
	if err != nil {
		return decimal.Zero, usageOp(err, "Subtotal")
	}
	return c.Subtotal(), nil
}

// AddToCart appends p with quantity 1, or increments the quantity of the
// entry that already has p's id. p is not validated.
func (s *Store) AddToCart(p Product) error {
	return s.apply("AddToCart", domain.Add(p))
}

// Increment raises the quantity of the entry with id by one.
// An unknown id is ignored.
func (s *Store) Increment(id string) error {
	return s.apply("Increment", domain.Increment(id))
}

// Decrement lowers the quantity of the entry with id by one, removing the
// entry when its quantity was 1. An unknown id is ignored.
func (s *Store) Decrement(id string) error {
	return s.apply("Decrement", domain.Decrement(id))
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.apply("Clear", domain.Clear())
}

func (s *Store) apply(op string, m domain.Mutation) error {
	return s.withSession(op, func(session *app.Session) {
		session.Apply(m)
	})
}

// withSession runs fn against the active session. Stop waits for every
// running fn before it flushes, so no change can slip past the final write.
func (s *Store) withSession(op string, fn func(*app.Session)) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return s.usageError(op)
	}
	session := s.session
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	fn(session)
	return nil
}

func (s *Store) current(op string) (<-chan struct{}, *app.Persister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, nil, s.usageError(op)
	}
	return s.ready, s.persist, nil
}

func (s *Store) usageError(op string) error {
	return &UsageError{
		Op:     op,
		Reason: "store is " + strings.ToLower(s.Status().String()),
	}
}

// accepting reports whether cart access is currently allowed.
func (s *Store) accepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// usageOp relabels a usage error raised by an inner accessor.
func usageOp(err error, op string) error {
	var uerr *UsageError
	if errors.As(err, &uerr) {
		return &UsageError{Op: op, Reason: uerr.Reason}
	}
	return err
}

// deactivate rejects new cart access and waits for running access to finish.
func (s *Store) deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.inflight.Wait()
}

func (s *Store) load(ctx context.Context, kv KVStore, session *app.Session) {
	err := session.Load(ctx, kv, s.opts.codec, s.opts.key)
	var serr *domain.StorageError
	if errors.As(err, &serr) {
		s.emitter.OnStorageError(serr, false)
	}
	if err := s.lifecycle.TransitionTo(app.StateReady, "cart loaded"); err != nil {
		s.logger.Debug("load completed after stop", log.Err(err))
	}
}

// settle waits for the load and the pending writes of an activation.
func (s *Store) settle(ctx context.Context, loaded <-chan struct{}, persister *app.Persister) error {
	select {
	case <-loaded:
	case <-ctx.Done():
		s.logger.Warn("cart load did not complete before stop, changes are lost",
			log.Duration("timeout", s.opts.flushTimeout),
		)
		return ErrShutdownTimeout
	}

	if err := persister.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("pending cart writes did not settle before stop",
				log.Duration("timeout", s.opts.flushTimeout),
			)
			return ErrShutdownTimeout
		}
		s.logger.Warn("final cart write failed", log.Err(err))
	}
	return nil
}

func (s *Store) initPlugins(ctx context.Context, kv KVStore) (int, error) {
	cfg := PluginConfig{
		Key:    s.opts.key,
		Store:  s,
		Logger: s.logger,
	}
	if p, ok := kv.(pather); ok {
		cfg.Path = p.Path()
	}

	for i, p := range s.opts.plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			s.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
			return i, fmt.Errorf("cartstore: plugin %s: %w", p.Name(), err)
		}
		s.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
	return len(s.opts.plugins), nil
}

// shutdownPlugins shuts down the first n plugins in reverse order.
func (s *Store) shutdownPlugins(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.flushTimeout)
	defer cancel()

	for i := n - 1; i >= 0; i-- {
		p := s.opts.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
		} else {
			s.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

func (s *Store) closeBackend(kv KVStore) {
	if s.open == nil {
		return
	}
	if err := kv.Close(); err != nil {
		s.logger.Error("failed to close backend", log.Err(err))
	}
}
