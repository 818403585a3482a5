package cart

import (
	"sync"
	"time"

	"github.com/gomarket/cartstore/internal/app"
	"github.com/gomarket/cartstore/internal/domain"
)

// EventHandler receives notifications about store activity.
// Methods are called synchronously from the goroutine that caused the event
// and should return quickly. Embed BaseEventHandler to implement only some.
type EventHandler interface {
	// OnStateChange is called on every lifecycle transition.
	OnStateChange(event StateChangeEvent)

	// OnCartChange is called after a mutation changed the cart.
	OnCartChange(event CartChangeEvent)

	// OnLoad is called once per Start when the initial load completes.
	OnLoad(event LoadEvent)

	// OnSaveSuccess is called after a cart snapshot was written.
	OnSaveSuccess(event SaveSuccessEvent)

	// OnStorageError is called when reading, writing or decoding fails.
	OnStorageError(event StorageErrorEvent)
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CartChangeEvent describes one applied mutation.
type CartChangeEvent struct {
	Previous Cart
	Current  Cart
	Mutation Mutation
}

// LoadEvent describes the outcome of the initial load.
type LoadEvent struct {
	// Cart is the cart adopted after replaying early mutations
	Cart Cart

	// Found is false when nothing was stored under the key
	Found bool

	// Replayed is the number of mutations applied before the load completed
	Replayed int

	// Err is the load failure, if any. The store continues in memory.
	Err error
}

// SaveSuccessEvent describes a completed write.
type SaveSuccessEvent struct {
	Entries  int
	Bytes    int
	Duration time.Duration
}

// StorageErrorEvent describes a failed storage operation.
type StorageErrorEvent struct {
	Err *StorageError

	// Retrying is true when the write will be attempted again
	Retrying bool
}

// BaseEventHandler provides no-op implementations of every EventHandler method.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnCartChange(CartChangeEvent)     {}
func (BaseEventHandler) OnLoad(LoadEvent)                 {}
func (BaseEventHandler) OnSaveSuccess(SaveSuccessEvent)   {}
func (BaseEventHandler) OnStorageError(StorageErrorEvent) {}

// eventEmitter adapts EventHandler to the internal emitter interfaces and
// remembers the last storage error.
type eventEmitter struct {
	handler EventHandler

	mu      sync.Mutex
	lastErr *StorageError
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) OnCartChange(previous, current domain.Cart, m domain.Mutation) {
	if e.handler == nil {
		return
	}
	e.handler.OnCartChange(CartChangeEvent{Previous: previous, Current: current, Mutation: m})
}

func (e *eventEmitter) OnLoad(cart domain.Cart, found bool, replayed int, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnLoad(LoadEvent{Cart: cart, Found: found, Replayed: replayed, Err: err})
}

func (e *eventEmitter) OnSaveSuccess(entries, bytes int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSaveSuccess(SaveSuccessEvent{Entries: entries, Bytes: bytes, Duration: duration})
}

func (e *eventEmitter) OnStorageError(err *domain.StorageError, retrying bool) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()

	if e.handler == nil {
		return
	}
	e.handler.OnStorageError(StorageErrorEvent{Err: err, Retrying: retrying})
}

func (e *eventEmitter) lastStorageError() *StorageError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

var (
	_ app.StateEmitter = (*eventEmitter)(nil)
	_ app.CartEmitter  = (*eventEmitter)(nil)
	_ app.SaveEmitter  = (*eventEmitter)(nil)
)
