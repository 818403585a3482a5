package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/gomarket/cartstore/internal/adapters/memory"
	"github.com/gomarket/cartstore/internal/codec"
	"github.com/gomarket/cartstore/pkg/cart"
)

// =============================================================================
// Test Utilities
// =============================================================================

func product(id, price string) cart.Product {
	return cart.Product{
		ID:       id,
		Title:    "Product " + id,
		ImageURL: "https://img.example/" + id + ".png",
		Price:    decimal.RequireFromString(price),
	}
}

type qty struct {
	ID       string
	Quantity int
}

func quantities(t *testing.T, s *cart.Store) []qty {
	t.Helper()
	entries, err := s.Products()
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	var out []qty
	for _, e := range entries {
		out = append(out, qty{e.ID, e.Quantity})
	}
	return out
}

func startStore(t *testing.T, kv cart.KVStore, opts ...cart.Option) *cart.Store {
	t.Helper()
	s, err := cart.New(kv, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if s.Status().Active() {
			_ = s.Stop()
		}
	})
	waitLoaded(t, s)
	return s
}

func waitLoaded(t *testing.T, s *cart.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
}

func flushStore(t *testing.T, s *cart.Store) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Flush(ctx)
}

func stored(t *testing.T, kv cart.KVStore) cart.Cart {
	t.Helper()
	raw, found, err := kv.Get(context.Background(), cart.DefaultKey)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	c, err := codec.NewJSON().Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return c
}

// failingKV fails every write.
type failingKV struct {
	cart.KVStore
}

func (failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}

// recordingHandler records events.
type recordingHandler struct {
	cart.BaseEventHandler

	mu      sync.Mutex
	states  []string
	changes int
	loads   []cart.LoadEvent
	errs    []cart.StorageErrorEvent
}

func (h *recordingHandler) OnStateChange(e cart.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Previous.String()+"->"+e.Current.String())
}

func (h *recordingHandler) OnCartChange(e cart.CartChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes++
}

func (h *recordingHandler) OnLoad(e cart.LoadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads = append(h.loads, e)
}

func (h *recordingHandler) OnStorageError(e cart.StorageErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, e)
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name      string
	order     *[]string
	initError error
	cfg       cart.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg cart.PluginConfig) error {
	if p.initError != nil {
		return p.initError
	}
	p.cfg = cfg
	*p.order = append(*p.order, "init:"+p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func TestStore_UsageErrorsOutsideActivation(t *testing.T) {
	s, err := cart.New(memory.NewStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := map[string]func() error{
		"Products":  func() error { _, err := s.Products(); return err },
		"Count":     func() error { _, err := s.Count(); return err },
		"AddToCart": func() error { return s.AddToCart(product("A", "1")) },
		"Increment": func() error { return s.Increment("A") },
		"Decrement": func() error { return s.Decrement("A") },
		"Flush":     func() error { return s.Flush(context.Background()) },
	}

	check := func(stage string) {
		for op, call := range calls {
			err := call()
			if !errors.Is(err, cart.ErrUsage) {
				t.Errorf("%s: %s() = %v, want ErrUsage", stage, op, err)
				continue
			}
			var uerr *cart.UsageError
			if errors.As(err, &uerr) && uerr.Op != op {
				t.Errorf("%s: UsageError.Op = %q, want %q", stage, uerr.Op, op)
			}
		}
	}

	check("before Start")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitLoaded(t, s)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	check("after Stop")
}

func TestStore_LifecycleErrors(t *testing.T) {
	s, err := cart.New(memory.NewStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Stop(); !errors.Is(err, cart.ErrNotRunning) {
		t.Errorf("Stop before Start = %v, want ErrNotRunning", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, cart.ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := s.Status(); got != cart.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
}

func TestStore_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		kv   cart.KVStore
		opts []cart.Option
	}{
		{name: "nil backend"},
		{name: "empty key", kv: memory.NewStore(), opts: []cart.Option{cart.WithKey("")}},
		{name: "nil codec", kv: memory.NewStore(), opts: []cart.Option{cart.WithCodec(nil)}},
		{name: "zero flush timeout", kv: memory.NewStore(), opts: []cart.Option{cart.WithFlushTimeout(0)}},
		{name: "negative retries", kv: memory.NewStore(), opts: []cart.Option{cart.WithSaveRetry(-1, 0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cart.New(tt.kv, tt.opts...); !errors.Is(err, cart.ErrInvalidConfig) {
				t.Errorf("New = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestStore_AddIncrementDecrement(t *testing.T) {
	kv := memory.NewStore()
	s := startStore(t, kv)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(s.AddToCart(product("A", "10.50")))
	must(s.AddToCart(product("B", "3")))
	if diff := cmp.Diff([]qty{{"A", 1}, {"B", 1}}, quantities(t, s)); diff != "" {
		t.Errorf("after distinct adds (-want +got):\n%s", diff)
	}

	must(s.AddToCart(product("A", "10.50")))
	must(s.Increment("B"))
	must(s.Increment("missing"))
	if diff := cmp.Diff([]qty{{"A", 2}, {"B", 2}}, quantities(t, s)); diff != "" {
		t.Errorf("after increments (-want +got):\n%s", diff)
	}

	must(s.Decrement("A"))
	must(s.Decrement("missing"))
	must(s.Decrement("B"))
	must(s.Decrement("B"))
	if diff := cmp.Diff([]qty{{"A", 1}}, quantities(t, s)); diff != "" {
		t.Errorf("after decrements (-want +got):\n%s", diff)
	}

	count, _ := s.Count()
	subtotal, _ := s.Subtotal()
	if count != 1 || !subtotal.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("Count, Subtotal = %d, %s; want 1, 10.50", count, subtotal)
	}

	must(flushStore(t, s))
	c := stored(t, kv)
	if c.Len() != 1 || c.Quantity("A") != 1 {
		t.Errorf("stored cart = %+v, want A x1", c.Entries())
	}
}

func TestStore_ReloadsAfterRestart(t *testing.T) {
	kv := memory.NewStore()
	s := startStore(t, kv)

	for _, id := range []string{"A", "B", "A"} {
		if err := s.AddToCart(product(id, "2")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitLoaded(t, s)
	if diff := cmp.Diff([]qty{{"A", 2}, {"B", 1}}, quantities(t, s)); diff != "" {
		t.Errorf("reloaded cart (-want +got):\n%s", diff)
	}
}

func TestStore_ProductsReturnsCopy(t *testing.T) {
	s := startStore(t, memory.NewStore())
	if err := s.AddToCart(product("A", "1")); err != nil {
		t.Fatal(err)
	}

	entries, _ := s.Products()
	entries[0].Quantity = 99
	entries[0].Title = "changed"

	again, _ := s.Products()
	if again[0].Quantity != 1 || again[0].Title != "Product A" {
		t.Errorf("store changed through returned slice: %+v", again[0])
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	kv := memory.NewStore()
	s := startStore(t, kv)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddToCart(product("A", "1"))
		}()
	}
	wg.Wait()

	if err := flushStore(t, s); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if q := stored(t, kv).Quantity("A"); q != n {
		t.Errorf("stored quantity = %d, want %d", q, n)
	}
}

func TestStore_StorageErrorKeepsMemoryState(t *testing.T) {
	handler := &recordingHandler{}
	s := startStore(t, failingKV{memory.NewStore()},
		cart.WithEventHandler(handler),
		cart.WithSaveRetry(1, time.Millisecond, time.Millisecond),
	)

	if err := s.AddToCart(product("A", "1")); err != nil {
		t.Fatalf("AddToCart = %v, want nil despite failing backend", err)
	}
	if err := flushStore(t, s); !errors.Is(err, cart.ErrStorage) {
		t.Errorf("Flush = %v, want ErrStorage", err)
	}
	if diff := cmp.Diff([]qty{{"A", 1}}, quantities(t, s)); diff != "" {
		t.Errorf("in-memory cart (-want +got):\n%s", diff)
	}

	var serr *cart.StorageError
	if !errors.As(s.LastStorageError(), &serr) || serr.Op != cart.StorageOpSet {
		t.Errorf("LastStorageError() = %v, want set failure", s.LastStorageError())
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errs) != 2 || !handler.errs[0].Retrying || handler.errs[1].Retrying {
		t.Errorf("storage error events = %+v, want retrying then final", handler.errs)
	}
}

func TestStore_Events(t *testing.T) {
	kv := memory.NewStore()
	handler := &recordingHandler{}
	s := startStore(t, kv, cart.WithEventHandler(handler))

	_ = s.AddToCart(product("A", "1"))
	_ = s.Increment("missing")
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()

	wantStates := []string{
		"Stopped->Loading",
		"Loading->Ready",
		"Ready->Stopping",
		"Stopping->Stopped",
	}
	if diff := cmp.Diff(wantStates, handler.states); diff != "" {
		t.Errorf("state changes (-want +got):\n%s", diff)
	}
	if handler.changes != 1 {
		t.Errorf("cart changes = %d, want 1 (no-op increment is silent)", handler.changes)
	}
	if len(handler.loads) != 1 || handler.loads[0].Found {
		t.Errorf("loads = %+v, want one load of an absent key", handler.loads)
	}
}

func TestStore_ReportsCorruptStoredCart(t *testing.T) {
	kv := memory.NewStore()
	_ = kv.Set(context.Background(), cart.DefaultKey, "not json")
	handler := &recordingHandler{}
	s := startStore(t, kv, cart.WithEventHandler(handler))

	var serr *cart.StorageError
	if !errors.As(s.LastStorageError(), &serr) || serr.Op != cart.StorageOpDecode {
		t.Fatalf("LastStorageError() = %v, want decode failure", s.LastStorageError())
	}
	if n, _ := s.Count(); n != 0 {
		t.Errorf("Count() = %d, want empty cart after corrupt load", n)
	}

	_ = s.AddToCart(product("A", "1"))
	if err := flushStore(t, s); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stored(t, kv).Quantity("A") != 1 {
		t.Error("cart not persisted after corrupt load")
	}
}

func TestStore_PluginOrder(t *testing.T) {
	var order []string
	a := &trackingPlugin{name: "a", order: &order}
	b := &trackingPlugin{name: "b", order: &order}

	s := startStore(t, memory.NewStore(), cart.WithPlugin(a), cart.WithPlugin(b), cart.WithKey("k"))
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("plugin calls (-want +got):\n%s", diff)
	}
	if a.cfg.Key != "k" || a.cfg.Store != s || a.cfg.Path != "" {
		t.Errorf("plugin config = %+v", a.cfg)
	}
}

func TestStore_FailingPluginAbortsStart(t *testing.T) {
	var order []string
	errBoom := errors.New("boom")
	a := &trackingPlugin{name: "a", order: &order}
	b := &trackingPlugin{name: "b", order: &order, initError: errBoom}

	s, err := cart.New(memory.NewStore(), cart.WithPlugin(a), cart.WithPlugin(b))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("Start = %v, want plugin error", err)
	}
	if s.Status() != cart.StateStopped {
		t.Errorf("Status() = %v, want Stopped", s.Status())
	}
	if diff := cmp.Diff([]string{"init:a", "shutdown:a"}, order); diff != "" {
		t.Errorf("plugin calls (-want +got):\n%s", diff)
	}
}

// countingKV counts Close calls of an owned backend.
type countingKV struct {
	*memory.Store
	closed *int
}

func (c countingKV) Close() error {
	*c.closed++
	return nil
}

func TestStore_OwnedBackendReopenedPerActivation(t *testing.T) {
	backing := memory.NewStore()
	var opened, closed int
	s, err := cart.NewOwned(func(ctx context.Context) (cart.KVStore, error) {
		opened++
		return countingKV{Store: backing, closed: &closed}, nil
	})
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		waitLoaded(t, s)
		_ = s.AddToCart(product("A", "1"))
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
	}

	if opened != 2 || closed != 2 {
		t.Errorf("opened, closed = %d, %d; want 2, 2", opened, closed)
	}
	if q := stored(t, backing).Quantity("A"); q != 2 {
		t.Errorf("stored quantity = %d, want 2", q)
	}
}

func TestStore_OwnedBackendOpenFailure(t *testing.T) {
	errDown := errors.New("backend down")
	s, err := cart.NewOwned(func(ctx context.Context) (cart.KVStore, error) {
		return nil, errDown
	})
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, errDown) {
		t.Errorf("Start = %v, want wrapped open error", err)
	}
	if s.Status() != cart.StateStopped {
		t.Errorf("Status() = %v, want Stopped", s.Status())
	}
}

func TestStore_StopWaitsForPendingWrites(t *testing.T) {
	kv := memory.NewStore()
	s := startStore(t, kv)
	for i := 0; i < 10; i++ {
		_ = s.AddToCart(product("A", "1"))
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if q := stored(t, kv).Quantity("A"); q != 10 {
		t.Errorf("stored quantity after Stop = %d, want 10", q)
	}
}

func TestStore_OutlivesCanceledStartContext(t *testing.T) {
	kv := memory.NewStore()
	s, err := cart.New(kv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if s.Status().Active() {
			_ = s.Stop()
		}
	})
	waitLoaded(t, s)
	cancel()

	if err := s.AddToCart(product("A", "1")); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if err := flushStore(t, s); err != nil {
		t.Fatalf("Flush after Start context canceled: %v", err)
	}
	if q := stored(t, kv).Quantity("A"); q != 1 {
		t.Errorf("stored quantity = %d, want 1", q)
	}
	if s.Status() != cart.StateReady {
		t.Errorf("Status() = %v, want Ready", s.Status())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

// stopObserver tries cart access from the state change events of Stop.
type stopObserver struct {
	cart.BaseEventHandler

	store      *cart.Store
	stopping   error
	stopped    error
	fromCtxErr error
}

func (h *stopObserver) OnStateChange(e cart.StateChangeEvent) {
	switch e.Current {
	case cart.StateStopping:
		h.stopping = h.store.AddToCart(product("late", "1"))
		_, h.fromCtxErr = cart.FromContext(cart.NewContext(context.Background(), h.store))
	case cart.StateStopped:
		h.stopped = h.store.AddToCart(product("after", "1"))
	}
}

func TestStore_StopEntersStoppingBeforeRejecting(t *testing.T) {
	kv := memory.NewStore()
	h := &stopObserver{}
	s, err := cart.New(kv, cart.WithEventHandler(h))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.store = s
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitLoaded(t, s)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if h.stopping != nil {
		t.Errorf("AddToCart on entering Stopping = %v, want nil", h.stopping)
	}
	if h.fromCtxErr != nil {
		t.Errorf("FromContext on entering Stopping = %v, want the store", h.fromCtxErr)
	}
	if q := stored(t, kv).Quantity("late"); q != 1 {
		t.Errorf("change made on entering Stopping not written: quantity = %d", q)
	}

	var uerr *cart.UsageError
	if !errors.As(h.stopped, &uerr) || uerr.Reason != "store is stopped" {
		t.Errorf("AddToCart after Stop = %v, want usage error \"store is stopped\"", h.stopped)
	}
}

// hangingKV blocks reads until their context ends.
type hangingKV struct {
	*memory.Store
}

func (hangingKV) Get(ctx context.Context, key string) (string, bool, error) {
	<-ctx.Done()
	return "", false, ctx.Err()
}

func TestStore_StopCancelsPendingLoad(t *testing.T) {
	kv := hangingKV{Store: memory.NewStore()}
	_ = kv.Store.Set(context.Background(), cart.DefaultKey, `[{"id":"A","title":"","image_url":"","price":1,"quantity":3}]`)
	handler := &recordingHandler{}
	s, err := cart.New(kv, cart.WithEventHandler(handler), cart.WithFlushTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.AddToCart(product("B", "1")); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	start := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v, want the pending load canceled at once", elapsed)
	}

	if q := stored(t, kv.Store).Quantity("A"); q != 3 {
		t.Errorf("stored cart overwritten: quantity of A = %d, want 3", q)
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errs) != 0 {
		t.Errorf("storage errors = %+v, want none for a canceled load", handler.errs)
	}
}
