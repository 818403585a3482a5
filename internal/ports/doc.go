// Package ports defines the interfaces that connect the cart store core to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [KVStore]: device-local key-value storage holding the serialized cart
//   - [Codec]: conversion between a cart and its stored string form
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters (internal/adapters, internal/codec) implement them with buntdb,
// a JSON file, redis, memory and encoding/json.
package ports
