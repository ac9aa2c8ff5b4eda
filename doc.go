// Package shieldforge composes the credential and session primitives a login service
// needs: reset codes, HS256 session tokens with an algorithm allow-list, password
// hashing, a password-reset workflow and WebAuthn passkey ceremonies.
//
// An [Engine] is assembled once with [New] and [Builder.Build] and is safe for
// concurrent use afterwards.
//
// # Architecture boundaries
//
// The sub-packages carry the primitives and can be used on their own:
//
//   - codes: CSPRNG reset codes and opaque tokens, SHA-256 code hashing.
//   - jwt: Sign, Verify and Decode plus a configured Manager.
//   - password: argon2id and bcrypt hashers behind one Multi router.
//   - challenge: single-use WebAuthn challenge stores (memory and Redis).
//   - passkey: the registration and authentication ceremony coordinator.
//
// shieldforge adds state that spans calls (pending resets, rate limits), audit
// events and counters. Accounts stay with the caller behind [UserProvider].
//
// # What this package must NOT do
//
//   - Log or audit codes, tokens, passwords or challenge values.
//   - Accept a token whose header algorithm is outside the allow-list.
//   - Let a challenge or reset code be used twice.
//
// # Backends
//
// With [Builder.WithRedis] pending resets, reset rate limits and challenges live in
// Redis and are shared between processes. Without it the Engine keeps them in memory
// and [Engine.Close] stops the challenge janitor.
package shieldforge
