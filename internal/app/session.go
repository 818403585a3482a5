package app

import (
	"context"
	"sync"

	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/internal/ports"
	"github.com/gomarket/cartstore/pkg/log"
)

// CartEmitter is called when the in-memory cart changes.
type CartEmitter interface {
	OnCartChange(previous, current domain.Cart, m domain.Mutation)
	OnLoad(cart domain.Cart, found bool, replayed int, err error)
}

// Session owns the in-memory cart of one store activation.
//
// Until the initial load completes, mutations are applied to the in-memory
// cart and recorded. When the stored cart arrives they are replayed on top of
// it, so nothing applied early is lost and the stored cart is never replaced
// by the provisional empty one.
type Session struct {
	mu        sync.RWMutex
	cart      domain.Cart
	loaded    bool
	abandoned bool
	pending   []domain.Mutation
	persister *Persister
	logger    log.Logger
	emitter   CartEmitter
	ready     chan struct{}
}

// NewSession creates a session with an empty, not yet loaded cart.
func NewSession(persister *Persister, logger log.Logger, emitter CartEmitter) *Session {
	return &Session{
		persister: persister,
		logger:    logger,
		emitter:   emitter,
		ready:     make(chan struct{}),
	}
}

// Cart returns the current cart.
func (s *Session) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart
}

// Loaded reports whether the initial load has completed.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Ready is closed when the initial load completes, successfully or not,
// or is abandoned.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Apply runs m against the current cart. Returns false when m was a no-op.
// A changed cart is submitted for persistence once the session is loaded.
func (s *Session) Apply(m domain.Mutation) bool {
	s.mu.Lock()
	prev := s.cart
	next, changed := m.Apply(prev)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.cart = next
	switch {
	case s.abandoned:
	case s.loaded:
		// Submit under the lock so snapshots reach the persister in order.
		s.persister.Submit(next)
	default:
		s.pending = append(s.pending, m)
	}
	s.mu.Unlock()

	s.logger.Debug("cart changed",
		log.String("op", m.Kind.String()),
		log.String("id", m.ID),
		log.Int("entries", next.Len()),
	)
	if s.emitter != nil {
		s.emitter.OnCartChange(prev, next, m)
	}
	return true
}

// Load reads the stored cart under key and adopts it.
// A read or decode failure is returned as a *domain.StorageError; the session
// then continues from the empty cart and stays usable.
// If ctx ends before the read completes, the load is abandoned: ctx.Err() is
// returned, the changes recorded so far are dropped and nothing is written.
func (s *Session) Load(ctx context.Context, kv ports.KVStore, codec ports.Codec, key string) error {
	raw, found, err := kv.Get(ctx, key)
	if err != nil && ctx.Err() != nil {
		s.abandon(ctx.Err())
		return ctx.Err()
	}
	if err != nil {
		serr := &domain.StorageError{Op: domain.StorageOpGet, Key: key, Err: err}
		s.adopt(domain.Cart{}, false, serr)
		return serr
	}

	stored := domain.Cart{}
	if found {
		c, err := codec.Decode(raw)
		if err != nil {
			serr := &domain.StorageError{Op: domain.StorageOpDecode, Key: key, Err: err}
			s.adopt(domain.Cart{}, true, serr)
			return serr
		}
		stored = c
	}

	s.adopt(stored, found, nil)
	return nil
}

func (s *Session) adopt(stored domain.Cart, found bool, loadErr error) {
	s.mu.Lock()
	if s.loaded || s.abandoned {
		s.mu.Unlock()
		return
	}
	cart := stored
	for _, m := range s.pending {
		cart, _ = m.Apply(cart)
	}
	replayed := len(s.pending)
	s.cart = cart
	s.pending = nil
	s.loaded = true
	if replayed > 0 {
		s.persister.Submit(cart)
	}
	close(s.ready)
	s.mu.Unlock()

	if loadErr != nil {
		s.logger.Error("failed to load cart, continuing in memory", log.Err(loadErr))
	} else {
		s.logger.Info("cart loaded",
			log.Bool("found", found),
			log.Int("entries", cart.Len()),
			log.Int("replayed", replayed),
		)
	}
	if s.emitter != nil {
		s.emitter.OnLoad(cart, found, replayed, loadErr)
	}
}

// abandon ends a canceled load. The stored cart is unknown, so the session
// never submits to the persister afterwards.
func (s *Session) abandon(cause error) {
	s.mu.Lock()
	if s.loaded || s.abandoned {
		s.mu.Unlock()
		return
	}
	dropped := len(s.pending)
	s.pending = nil
	s.abandoned = true
	close(s.ready)
	cart := s.cart
	s.mu.Unlock()

	s.logger.Warn("cart load canceled, dropping unsaved changes",
		log.Int("dropped", dropped),
		log.Err(cause),
	)
	if s.emitter != nil {
		s.emitter.OnLoad(cart, false, 0, cause)
	}
}
