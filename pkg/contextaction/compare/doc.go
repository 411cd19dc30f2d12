// Package compare decides whether a new value differs from an old one.
//
// Stores use it to suppress notifications for writes that change nothing.
// Four strategies are available:
//
//   - Reference: identity. Plain values compare with ==, while maps, slices,
//     funcs and chans compare by backing pointer.
//   - Shallow: one level of struct fields, map entries or elements, each
//     compared by reference. A top-level pointer is looked through once.
//   - Deep: structural equality, optionally bounded by MaxDepth. Cycles are
//     detected per call, so self-referencing values terminate.
//   - Custom: a user Comparator. Without one, Reference is used.
//
// IgnoreKeys removes volatile entries (timestamps, cache fields) from Shallow
// and Deep comparison. They match string map keys and struct fields by Go
// name or json tag.
//
// An Engine carries the default options for one runtime:
//
//	eng := compare.NewEngine(compare.Options{Strategy: compare.Deep})
//	eng.Compare(oldUser, newUser, nil)
package compare
