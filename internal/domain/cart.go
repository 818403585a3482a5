package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Cart is the ordered collection of entries, unique by product id.
// Order is insertion order. The zero value is an empty cart.
//
// Cart is immutable: transitions return a new Cart and never write to the
// receiver's backing array.
type Cart struct {
	entries []Entry
}

// NewCart builds a Cart from decoded or caller-supplied entries.
// Entries with a quantity below 1 are dropped and repeated ids are merged
// into their first occurrence by summing quantities, saturating at math.MaxInt.
func NewCart(entries []Entry) Cart {
	out := make([]Entry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Quantity < 1 {
			continue
		}
		if i, ok := index[e.ID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, e.Quantity)
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return Cart{entries: out}
}

// Entries returns a copy of the entries in cart order.
func (c Cart) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of distinct product lines.
func (c Cart) Len() int {
	return len(c.entries)
}

// IsEmpty returns true if the cart has no entries.
func (c Cart) IsEmpty() bool {
	return len(c.entries) == 0
}

// Find returns the entry for id.
func (c Cart) Find(id string) (Entry, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Quantity returns the quantity held for id, or 0 if absent.
func (c Cart) Quantity(id string) int {
	e, _ := c.Find(id)
	return e.Quantity
}

// TotalQuantity returns the sum of all quantities.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

// Subtotal returns the exact sum of every line total.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.LineTotal())
	}
	return total
}

// Add appends p with quantity 1, or bumps the quantity of the existing line
// for p.ID leaving its other fields untouched. A line already at
// math.MaxInt is left as is.
func (c Cart) Add(p Product) Cart {
	if i := c.indexOf(p.ID); i >= 0 {
		return c.withQuantity(i, addQuantity(c.entries[i].Quantity, 1))
	}
	out := make([]Entry, len(c.entries), len(c.entries)+1)
	copy(out, c.entries)
	out = append(out, Entry{Product: p, Quantity: 1})
	return Cart{entries: out}
}

// Increment bumps the quantity for id by one.
// Returns the receiver and false if id is not in the cart or its quantity is
// already math.MaxInt.
func (c Cart) Increment(id string) (Cart, bool) {
	i := c.indexOf(id)
	if i < 0 || c.entries[i].Quantity == math.MaxInt {
		return c, false
	}
	return c.withQuantity(i, c.entries[i].Quantity+1), true
}

// Decrement lowers the quantity for id by one, removing the line when its
// quantity is 1. Returns the receiver and false if id is not in the cart.
func (c Cart) Decrement(id string) (Cart, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return c, false
	}
	if c.entries[i].Quantity <= 1 {
		return c.without(i), true
	}
	return c.withQuantity(i, c.entries[i].Quantity-1), true
}

// Clear returns an empty cart. The bool is false if the cart was already empty.
func (c Cart) Clear() (Cart, bool) {
	if c.IsEmpty() {
		return c, false
	}
	return Cart{}, true
}

// Equal reports whether both carts hold the same entries in the same order.
func (c Cart) Equal(other Cart) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for i, e := range c.entries {
		o := other.entries[i]
		if e.ID != o.ID || e.Title != o.Title || e.ImageURL != o.ImageURL ||
			e.Quantity != o.Quantity || !e.Price.Equal(o.Price) {
			return false
		}
	}
	return true
}

func (c Cart) indexOf(id string) int {
	for i, e := range c.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) withQuantity(i, quantity int) Cart {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	out[i].Quantity = quantity
	return Cart{entries: out}
}

func (c Cart) without(i int) Cart {
	out := make([]Entry, 0, len(c.entries)-1)
	out = append(out, c.entries[:i]...)
	out = append(out, c.entries[i+1:]...)
	return Cart{entries: out}
}

// addQuantity adds two positive quantities, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
