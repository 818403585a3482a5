package filewatch

import "github.com/gomarket/cartstore/pkg/cart"

// WithFileWatch returns a cart Option that watches the backing file of the store.
//
// Usage:
//
//	store, err := cart.New(kv,
//	    filewatch.WithFileWatch(filewatch.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	        OnChange:      func(path string) { reload(path) },
//	    }),
//	)
func WithFileWatch(cfg Config) cart.Option {
	return cart.WithPlugin(New(cfg))
}
