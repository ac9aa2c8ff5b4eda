// Package codes generates short-lived secrets (numeric reset codes and opaque
// alphanumeric tokens) and hashes them for storage.
//
// # Randomness
//
// Every symbol is drawn with crypto/rand using rejection-free big.Int bounds, so
// each symbol of the alphabet is equally likely. There is no fallback source: if the
// operating system entropy pool cannot be read, generation fails.
//
// # Storage
//
// Only the output of [Hash] is meant to be persisted. [Verify] recomputes the digest
// and compares it in constant time; it never returns an error, because a wrong or
// malformed code is an expected user-facing outcome.
//
// # What this package must NOT do
//
//   - Log, persist, or cache raw codes.
//   - Use math/rand or any seeded generator.
package codes
