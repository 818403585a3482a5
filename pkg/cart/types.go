package cart

import (
	"github.com/gomarket/cartstore/internal/app"
	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/internal/ports"
	"github.com/gomarket/cartstore/pkg/log"
)

// Re-exported domain types so consumers only import pkg/cart.
type (
	// Product is the candidate passed to AddToCart.
	Product = domain.Product

	// Entry is a product line with its quantity.
	Entry = domain.Entry

	// Cart is an immutable snapshot of the ordered entries.
	Cart = domain.Cart

	// Mutation describes one cart transition, as reported in CartChangeEvent.
	Mutation = domain.Mutation

	// MutationKind names the transition of a Mutation.
	MutationKind = domain.MutationKind

	// KVStore is the persistent key-value store backing a Store.
	KVStore = ports.KVStore

	// Codec converts a cart to and from its stored string form.
	Codec = ports.Codec

	// Logger is the structured logger used by a Store.
	Logger = log.Logger

	// UsageError reports cart access outside an active store.
	UsageError = domain.UsageError

	// StorageError reports a failed read, write or (de)serialization.
	StorageError = domain.StorageError
)

// Mutation kinds.
const (
	MutationAdd       = domain.MutationAdd
	MutationIncrement = domain.MutationIncrement
	MutationDecrement = domain.MutationDecrement
	MutationClear     = domain.MutationClear
)

// Errors returned by the Store. Compare with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrUsage           = domain.ErrUsage
	ErrStorage         = domain.ErrStorage
)

// Storage operations reported in StorageError.Op.
const (
	StorageOpGet    = domain.StorageOpGet
	StorageOpSet    = domain.StorageOpSet
	StorageOpDecode = domain.StorageOpDecode
	StorageOpEncode = domain.StorageOpEncode
)

// DefaultKey is the storage key carts are written under.
const DefaultKey = "@goMarket:products"

// FlushTimeout is the default time Stop waits for pending writes.
const FlushTimeout = app.FlushTimeout

// NewCart builds a normalized cart from entries. Entries with a quantity
// below 1 are dropped and repeated ids are merged.
func NewCart(entries []Entry) Cart {
	return domain.NewCart(entries)
}

// State represents the lifecycle state of a Store.
type State int

const (
	// StateStopped indicates the store is not active.
	StateStopped State = iota

	// StateLoading indicates the store is active and the stored cart is
	// still being read. Mutations are accepted and replayed onto it.
	StateLoading

	// StateReady indicates the stored cart has been loaded.
	StateReady

	// StateStopping indicates pending writes are being flushed.
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

// Active reports whether the cart may be read and mutated in state s.
func (s State) Active() bool {
	return s == StateLoading || s == StateReady
}

func convertState(s app.State) State {
	switch s {
	case app.StateLoading:
		return StateLoading
	case app.StateReady:
		return StateReady
	case app.StateStopping:
		return StateStopping
	default:
		return StateStopped
	}
}
