// Package domain contains the core entities and value objects of the cart store.
//
// This package is the innermost layer. It has no dependencies on storage,
// serialization or logging and contains only the cart's state transitions.
//
// # Entities
//
//   - [Product]: a candidate line without quantity, as passed to AddToCart
//   - [Entry]: a product line held in the cart with its quantity
//   - [Cart]: the ordered, id-unique collection of entries
//   - [Mutation]: a recorded AddToCart/Increment/Decrement/Clear transition
//
// # Design Principles
//
// A [Cart] is an immutable value. Every transition returns a new Cart built on
// a fresh slice, so a snapshot handed to a reader or to the persister can never
// change underneath it.
package domain
