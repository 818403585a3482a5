package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gomarket/cartstore/internal/domain"
)

var errDiskFull = errors.New("disk full")

// fakeKV is a scriptable ports.KVStore.
type fakeKV struct {
	mu         sync.Mutex
	values     map[string]string
	sets       []string
	failSets   int // fail this many upcoming Set calls
	alwaysFail bool
	getErr     error
	gate       chan struct{} // when non-nil, Set blocks until it is closed or receives
	entered    chan struct{} // receives once per Set call, if non-nil
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alwaysFail {
		return errDiskFull
	}
	if f.failSets > 0 {
		f.failSets--
		return errDiskFull
	}
	f.values[key] = value
	f.sets = append(f.sets, value)
	return nil
}

func (f *fakeKV) Close() error { return nil }

func (f *fakeKV) value(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

func (f *fakeKV) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

// recordingEmitter captures persister and session callbacks.
type recordingEmitter struct {
	mu       sync.Mutex
	saves    int
	errors   []*domain.StorageError
	retrying []bool
	changes  int
	loads    int
	replayed int
	loadErr  error
}

func (r *recordingEmitter) OnSaveSuccess(entries, bytes int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
}

func (r *recordingEmitter) OnStorageError(err *domain.StorageError, retrying bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.retrying = append(r.retrying, retrying)
}

func (r *recordingEmitter) OnCartChange(previous, current domain.Cart, m domain.Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
}

func (r *recordingEmitter) OnLoad(cart domain.Cart, found bool, replayed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	r.replayed = replayed
	r.loadErr = err
}
