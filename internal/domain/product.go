package domain

import "github.com/shopspring/decimal"

// Product is one sellable line without a quantity.
// It is what consumers pass to AddToCart; no field is validated.
type Product struct {
	// ID identifies the product and is stable across sessions
	ID string

	// Title is the display name
	Title string

	// ImageURL references the product image
	ImageURL string

	// Price is the unit price. The currency is not tracked.
	Price decimal.Decimal
}

// Entry is a product line held in the cart.
// Quantity is always at least 1 while the entry is part of a Cart.
type Entry struct {
	Product
	Quantity int
}

// LineTotal returns Price * Quantity.
func (e Entry) LineTotal() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}
