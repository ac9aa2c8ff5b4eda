// Package password hashes and verifies account passwords.
//
// Two encodings are supported:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//	$2a$<cost>$<salt+hash>   (bcrypt, also $2b$ and $2y$)
//
// [Detect] identifies the encoding of a stored hash and [Multi] routes
// verification to the matching hasher, so stores that hold a mix of both keep
// working while new hashes are produced by a single primary algorithm.
//
// Plaintext is processed as raw bytes. No Unicode normalization is applied.
package password
