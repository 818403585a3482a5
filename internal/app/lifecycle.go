package app

import (
	"context"
	"sync"
	"time"

	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/pkg/log"
)

// FlushTimeout is the default time Stop waits for pending writes.
const FlushTimeout = 5 * time.Second

// State represents the lifecycle state of a cart store.
type State int

const (
	StateStopped State = iota
	StateLoading
	StateReady
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Active reports whether consumers may read and mutate the cart.
func (s State) Active() bool {
	return s == StateLoading || s == StateReady
}

// Lifecycle manages the state machine of a store session.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter StateEmitter
}

// StateEmitter is called when lifecycle state changes.
type StateEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager in StateStopped.
func NewLifecycle(logger log.Logger, emitter StateEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateStopped,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
//
// Valid transitions:
//   - Stopped -> Loading
//   - Loading -> Ready, Stopping
//   - Ready -> Stopping
//   - Stopping -> Stopped
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	switch oldState {
	case StateStopped:
		if newState != StateLoading {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	case StateLoading:
		if newState != StateReady && newState != StateStopping {
			l.mu.Unlock()
			return domain.ErrAlreadyRunning
		}
	case StateReady:
		if newState != StateStopping {
			l.mu.Unlock()
			return domain.ErrAlreadyRunning
		}
	case StateStopping:
		if newState != StateStopped {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	return l.State() == StateStopped
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	return l.State().Active()
}

// Active returns true while the cart may be used.
func (l *Lifecycle) Active() bool {
	return l.State().Active()
}

// SetCancel stores the cancel function of the session context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel cancels the session context.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn on a tracked worker goroutine.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("workers still running after shutdown timeout",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
