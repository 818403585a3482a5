package app

import (
	"context"
	"sync"
	"time"

	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/internal/ports"
	"github.com/gomarket/cartstore/pkg/log"
)

// PersisterConfig contains configuration for the save loop.
type PersisterConfig struct {
	// Key is the storage key the cart is written under
	Key string

	// Retries is how many times a failed write is retried before it is
	// given up. A newer snapshot always supersedes a retrying one.
	Retries int

	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// SaveEmitter is called when a write settles or fails.
type SaveEmitter interface {
	OnSaveSuccess(entries, bytes int, duration time.Duration)
	OnStorageError(err *domain.StorageError, retrying bool)
}

// Persister is the single writer of a session's cart to the KVStore.
//
// Submissions coalesce: only the latest unwritten snapshot is kept, so writes
// are strictly sequential and the last submitted cart is the one that lands
// in storage.
type Persister struct {
	kv      ports.KVStore
	codec   ports.Codec
	cfg     PersisterConfig
	logger  log.Logger
	emitter SaveEmitter

	wake chan struct{}

	mu        sync.Mutex
	pending   *domain.Cart
	submitted uint64
	settled   uint64
	lastErr   error
	settledCh chan struct{}
}

// NewPersister creates a persister. Call Run to start writing.
func NewPersister(kv ports.KVStore, codec ports.Codec, cfg PersisterConfig, logger log.Logger, emitter SaveEmitter) *Persister {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Persister{
		kv:        kv,
		codec:     codec,
		cfg:       cfg,
		logger:    logger,
		emitter:   emitter,
		wake:      make(chan struct{}, 1),
		settledCh: make(chan struct{}),
	}
}

// Submit queues cart as the next state to write, replacing any snapshot
// that has not been picked up yet. It never blocks.
func (p *Persister) Submit(cart domain.Cart) {
	p.mu.Lock()
	p.pending = &cart
	p.submitted++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes submitted snapshots until ctx is canceled.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			p.drain(ctx)
		}
	}
}

// Flush waits until every snapshot submitted before the call has settled.
// Returns the error of the last settled write (nil on success), or ctx.Err().
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.submitted
	for p.settled < target {
		ch := p.settledCh
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		p.mu.Lock()
	}
	err := p.lastErr
	p.mu.Unlock()
	return err
}

// LastError returns the error of the most recently settled write.
func (p *Persister) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Persister) drain(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.pending == nil {
			p.mu.Unlock()
			return
		}
		cart := *p.pending
		version := p.submitted
		p.pending = nil
		p.mu.Unlock()

		err := p.write(ctx, cart, version)
		p.settle(version, err)
	}
}

func (p *Persister) write(ctx context.Context, cart domain.Cart, version uint64) error {
	data, err := p.codec.Encode(cart)
	if err != nil {
		serr := &domain.StorageError{Op: domain.StorageOpEncode, Key: p.cfg.Key, Err: err}
		p.report(serr, false)
		return serr
	}

	bo := newBackoff(p.cfg.BackoffInitial, p.cfg.BackoffMax)
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := p.kv.Set(ctx, p.cfg.Key, data)
		if err == nil {
			duration := time.Since(start)
			p.logger.Debug("saved cart",
				log.String("key", p.cfg.Key),
				log.Int("entries", cart.Len()),
				log.Int("bytes", len(data)),
				log.Duration("duration", duration),
			)
			if p.emitter != nil {
				p.emitter.OnSaveSuccess(cart.Len(), len(data), duration)
			}
			return nil
		}

		serr := &domain.StorageError{Op: domain.StorageOpSet, Key: p.cfg.Key, Err: err}
		retrying := attempt < p.cfg.Retries && !p.superseded(version) && ctx.Err() == nil
		p.report(serr, retrying)
		if !retrying || !bo.Wait(ctx) {
			return serr
		}
		if p.superseded(version) {
			return serr
		}
	}
}

func (p *Persister) report(serr *domain.StorageError, retrying bool) {
	p.logger.Error("failed to save cart",
		log.String("op", serr.Op),
		log.String("key", serr.Key),
		log.Bool("retrying", retrying),
		log.Err(serr.Err),
	)
	if p.emitter != nil {
		p.emitter.OnStorageError(serr, retrying)
	}
}

func (p *Persister) superseded(version uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted > version
}

func (p *Persister) settle(version uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if version <= p.settled {
		return
	}
	p.settled = version
	p.lastErr = err
	close(p.settledCh)
	p.settledCh = make(chan struct{})
}
