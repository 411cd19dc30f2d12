// Package registry provides a generic thread-safe registry that remembers
// insertion order.
//
// The store registry, the event bus and the action register all keep their
// named entries here, so listing operations report names in the order they
// were first registered:
//
//	stores := registry.New[string, *Entry]()
//	stores.Register("user", userEntry)
//	stores.Register("cart", cartEntry)
//	stores.Keys() // ["user", "cart"]
//
// Reads take a shared lock; Range and Clear operate on snapshots so
// callbacks may mutate the registry.
package registry
