package codes

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashLength is the length of a hex encoded SHA-256 digest.
const HashLength = sha256.Size * 2

// Hash returns the lowercase hex SHA-256 digest of code.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether code hashes to storedHash.
//
// The digests are compared with subtle.ConstantTimeCompare. Malformed or
// wrong-length hashes yield false.
func Verify(code, storedHash string) bool {
	if len(storedHash) != HashLength {
		return false
	}

	stored, err := hex.DecodeString(storedHash)
	if err != nil || len(stored) != sha256.Size {
		return false
	}

	computed := sha256.Sum256([]byte(code))
	return subtle.ConstantTimeCompare(computed[:], stored) == 1
}
