package codec

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gomarket/cartstore/internal/domain"
)

func sampleCart() domain.Cart {
	c := domain.Cart{}.
		Add(domain.Product{ID: "A", Title: "Apple", ImageURL: "a.png", Price: decimal.RequireFromString("10")}).
		Add(domain.Product{ID: "B", Title: "Banana", ImageURL: "b.png", Price: decimal.RequireFromString("0.35")}).
		Add(domain.Product{ID: "C", Title: "Cherry", ImageURL: "c.png", Price: decimal.RequireFromString("129.990")})
	c, _ = c.Increment("B")
	c, _ = c.Increment("B")
	return c
}

func TestJSON_RoundTrip(t *testing.T) {
	codec := NewJSON()
	in := sampleCart()

	data, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s): %v", data, err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in.Entries(), out.Entries())
	}
}

func TestJSON_EncodeLayout(t *testing.T) {
	c := domain.Cart{}.Add(domain.Product{ID: "A", Title: "Apple", ImageURL: "a.png", Price: decimal.RequireFromString("10.5")})

	data, err := NewJSON().Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `[{"id":"A","title":"Apple","image_url":"a.png","price":10.5,"quantity":1}]`
	if data != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}

func TestJSON_EncodeEmpty(t *testing.T) {
	data, err := NewJSON().Encode(domain.Cart{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if data != "[]" {
		t.Errorf("Encode(empty) = %s, want []", data)
	}
}

func TestJSON_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantLen int
		wantErr bool
	}{
		{"empty string", "", 0, false},
		{"null", "null", 0, false},
		{"empty array", "[]", 0, false},
		{"mobile layout", `[{"id":"1","title":"Shoe","image_url":"x","price":59.9,"quantity":2}]`, 1, false},
		{"zero quantity dropped", `[{"id":"1","price":1,"quantity":0},{"id":"2","price":1,"quantity":1}]`, 1, false},
		{"missing price", `[{"id":"1","quantity":1}]`, 1, false},
		{"not json", "{corrupt", 0, true},
		{"wrong shape", `{"id":"1"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewJSON().Decode(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Len() != tt.wantLen {
				t.Errorf("Decode() len = %d, want %d", c.Len(), tt.wantLen)
			}
		})
	}
}

func TestJSON_DecodeKeepsExactPrice(t *testing.T) {
	c, err := NewJSON().Decode(`[{"id":"1","price":0.1,"quantity":3}]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := decimal.RequireFromString("0.3")
	if got := c.Subtotal(); !got.Equal(want) {
		t.Errorf("Subtotal() = %s, want %s", got, want)
	}
}

func TestJSON_EncodeRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
	}{
		{"id", domain.Product{ID: "A\xff", Title: "Apple"}},
		{"title", domain.Product{ID: "A", Title: "App\xc3le"}},
		{"image url", domain.Product{ID: "A", ImageURL: "\xffa.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := domain.Cart{}.Add(tt.product)
			if data, err := NewJSON().Encode(c); err == nil {
				t.Errorf("Encode() = %s, want error for invalid UTF-8", data)
			}
		})
	}
}
