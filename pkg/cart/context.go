package cart

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx that carries store.
func NewContext(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, store)
}

// FromContext returns the store carried by ctx.
// Returns a *UsageError when ctx carries no store or the store is not active.
func FromContext(ctx context.Context) (*Store, error) {
	store, _ := ctx.Value(contextKey{}).(*Store)
	if store == nil {
		return nil, &UsageError{Op: "FromContext", Reason: "no cart store in context"}
	}
	if !store.accepting() {
		return nil, store.usageError("FromContext")
	}
	return store, nil
}

// MustFromContext is like FromContext but panics with the *UsageError.
func MustFromContext(ctx context.Context) *Store {
	store, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return store
}
