// Package codec implements the stored representation of a cart.
package codec

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/gomarket/cartstore/internal/domain"
	"github.com/gomarket/cartstore/internal/ports"
)

// entryJSON is the device-storage layout of one cart line.
// Field names match carts written by earlier mobile releases.
type entryJSON struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	ImageURL string      `json:"image_url"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

// JSON encodes a cart as a JSON array of entries.
type JSON struct{}

// NewJSON returns the JSON codec.
func NewJSON() JSON {
	return JSON{}
}

// Encode serializes the cart as `[{"id":..,"title":..,"image_url":..,"price":..,"quantity":..}]`.
// Prices are written as JSON numbers carrying the exact decimal digits.
func (JSON) Encode(cart domain.Cart) (string, error) {
	entries := cart.Entries()
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		if err := validText(e); err != nil {
			return "", err
		}
		out = append(out, entryJSON{
			ID:       e.ID,
			Title:    e.Title,
			ImageURL: e.ImageURL,
			Price:    json.Number(e.Price.String()),
			Quantity: e.Quantity,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored cart. `null` and an empty string decode to an empty cart.
func (JSON) Decode(data string) (domain.Cart, error) {
	if data == "" {
		return domain.Cart{}, nil
	}
	var in []entryJSON
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return domain.Cart{}, err
	}
	entries := make([]domain.Entry, 0, len(in))
	for i, e := range in {
		price := decimal.Zero
		if e.Price != "" {
			p, err := decimal.NewFromString(e.Price.String())
			if err != nil {
				return domain.Cart{}, fmt.Errorf("entry %d (%s): price: %w", i, e.ID, err)
			}
			price = p
		}
		entries = append(entries, domain.Entry{
			Product: domain.Product{
				ID:       e.ID,
				Title:    e.Title,
				ImageURL: e.ImageURL,
				Price:    price,
			},
			Quantity: e.Quantity,
		})
	}
	return domain.NewCart(entries), nil
}

var _ ports.Codec = JSON{}

// validText rejects strings encoding/json would rewrite to U+FFFD.
func validText(e domain.Entry) error {
	for _, f := range [...]struct{ name, value string }{
		{"id", e.ID},
		{"title", e.Title},
		{"image_url", e.ImageURL},
	} {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("entry %q: %s is not valid UTF-8", e.ID, f.name)
		}
	}
	return nil
}
