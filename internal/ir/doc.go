// Package ir provides the canonical value and identity primitives for cellsync.
//
// This package contains leaf types only. Every other internal package may
// import ir; ir imports nothing internal.
//
// Key constraints:
//   - Opaque payloads (output mime bundles, UI state values) are modelled as
//     Value, a sealed interface over Null, String, Int, Number, Bool, Array
//     and Object.
//   - Integers are int64. Other numbers are Number and serialize with the
//     RFC 8785 rules, so event identity never depends on input formatting.
//   - Identity is content-addressed: SHA-256 over RFC 8785 canonical JSON
//     with a versioned domain prefix.
package ir
