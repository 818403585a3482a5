package ports

import "github.com/gomarket/cartstore/internal/domain"

// Codec converts carts to and from the string persisted in a KVStore.
type Codec interface {
	// Encode serializes the cart in order.
	Encode(cart domain.Cart) (string, error)

	// Decode parses a stored value. The result is normalized (see domain.NewCart).
	Decode(data string) (domain.Cart, error)
}
