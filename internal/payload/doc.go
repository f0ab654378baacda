// Package payload provides the opaque structured values that producers attach
// to assets as metadata and content.
//
// The store never interprets a payload. It only needs two guarantees:
//   - a payload round-trips through JSON storage without changing meaning
//   - two payloads that mean the same thing serialize to the same bytes
//
// The second guarantee is provided by MarshalCanonical, which emits RFC 8785
// canonical JSON:
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - numbers in ECMAScript shortest form, so 2 and 2.0 are the same value
//
// Content hashes used for the no-op-versus-supersede decision are computed
// from the canonical bytes with domain-separated SHA-256 (see hash.go).
//
// This package imports nothing internal.
package payload
