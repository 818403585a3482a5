package domain

import "math"

// MutationKind identifies a cart transition.
type MutationKind int

const (
	MutationAdd MutationKind = iota
	MutationIncrement
	MutationDecrement
	MutationClear
)

// String returns a human-readable representation of the kind.
func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationIncrement:
		return "increment"
	case MutationDecrement:
		return "decrement"
	case MutationClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Mutation is a recorded transition that can be applied to any Cart.
// Product is used by MutationAdd, ID by MutationIncrement and MutationDecrement.
type Mutation struct {
	Kind    MutationKind
	Product Product
	ID      string
}

// Add returns the mutation recorded by AddToCart.
func Add(p Product) Mutation { return Mutation{Kind: MutationAdd, Product: p, ID: p.ID} }

// Increment returns the mutation recorded by Increment.
func Increment(id string) Mutation { return Mutation{Kind: MutationIncrement, ID: id} }

// Decrement returns the mutation recorded by Decrement.
func Decrement(id string) Mutation { return Mutation{Kind: MutationDecrement, ID: id} }

// Clear returns the mutation recorded by Clear.
func Clear() Mutation { return Mutation{Kind: MutationClear} }

// Apply computes the transition against c in one step.
// The bool is false when the mutation left the cart unchanged.
func (m Mutation) Apply(c Cart) (Cart, bool) {
	switch m.Kind {
	case MutationAdd:
		if e, ok := c.Find(m.Product.ID); ok && e.Quantity == math.MaxInt {
			return c, false
		}
		return c.Add(m.Product), true
	case MutationIncrement:
		return c.Increment(m.ID)
	case MutationDecrement:
		return c.Decrement(m.ID)
	case MutationClear:
		return c.Clear()
	default:
		return c, false
	}
}
