// Package cart provides an embeddable, persistent shopping cart.
//
// A [Store] keeps an ordered list of products with quantities in memory and
// writes it to a key-value backend after every change. The stored form is
// the JSON array used by earlier mobile releases, under the key
// "@goMarket:products".
//
// # Basic Usage
//
//	kv, err := bunt.Open("/var/lib/app/cart.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer kv.Close()
//
//	store, err := cart.New(kv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := store.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Stop()
//
//	_ = store.AddToCart(cart.Product{ID: "sku-1", Title: "Shoe", Price: decimal.RequireFromString("79.90")})
//
// The root package github.com/gomarket/cartstore opens one of the bundled
// backends from a Config and returns a Store that owns it.
//
// # Loading
//
// Start returns immediately and the store is usable at once. The stored cart
// is read in the background; changes made before it arrives are replayed on
// top of it, so nothing is lost and the stored cart is never overwritten by
// the empty one. [Store.WaitLoaded] blocks until loading completed.
//
// # Persistence
//
// Writes happen on a single background goroutine. When several changes are
// made while a write is in flight, only the latest cart is written next.
// Failed writes are retried with exponential backoff. [Store.Flush] waits for
// all changes made so far. Storage failures never change the in-memory cart;
// they are reported to [EventHandler.OnStorageError] and by
// [Store.LastStorageError].
//
// # Lifecycle States
//
// A Store is in one of [StateStopped], [StateLoading], [StateReady] or
// [StateStopping]. Reading or changing the cart outside StateLoading and
// StateReady returns a [*UsageError].
//
// # Plugins
//
// Plugins registered with [WithPlugin] run for the lifetime of an activation:
//
//	store, err := cart.New(kv, filewatch.WithFileWatch(filewatch.Config{
//	    OnChange: func(path string) { ... },
//	}))
package cart
