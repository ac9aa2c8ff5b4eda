// Package challenge stores short-lived, single-use WebAuthn challenge values.
//
// # Guarantees
//
// Every [Store] implementation upholds three rules:
//
//   - an expired challenge is indistinguishable from one that never existed;
//   - [Store.Consume] removes and returns a challenge in one atomic step, so of any
//     number of concurrent callers presenting the same value exactly one succeeds;
//   - values come from crypto/rand with at least 32 bytes of entropy ([NewValue]).
//
// [MemoryStore] is process-local and suits single-instance deployments and tests.
// [RedisStore] shares challenges across instances so a ceremony started on one
// server can be completed on another.
package challenge
