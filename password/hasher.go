package password

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMinPasswordBytes is the shortest password Hash accepts.
	DefaultMinPasswordBytes = 10
	// DefaultMaxPasswordBytes caps the input handed to the key derivation function.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under the configured minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned for passwords over the configured maximum.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned when no configured hasher understands a stored hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrInvalidConfig is returned by constructors for weak or inconsistent parameters.
	ErrInvalidConfig = errors.New("invalid password hasher config")
)

// Algorithm names a password hash encoding.
type Algorithm string

const (
	AlgorithmUnknown  Algorithm = ""
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Hasher hashes passwords and verifies them against stored hashes.
type Hasher interface {
	Algorithm() Algorithm
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Detect reports the encoding of encodedHash without validating it.
func Detect(encodedHash string) Algorithm {
	switch {
	case strings.HasPrefix(encodedHash, "$"+string(AlgorithmArgon2id)+"$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return AlgorithmBcrypt
	default:
		return AlgorithmUnknown
	}
}

// Multi hashes with a primary hasher and verifies with whichever configured hasher
// matches the stored encoding.
type Multi struct {
	primary Hasher
	byAlg   map[Algorithm]Hasher
}

// NewMulti builds a router. Additional hashers are consulted for verification only.
func NewMulti(primary Hasher, legacy ...Hasher) (*Multi, error) {
	if primary == nil {
		return nil, fmt.Errorf("%w: primary hasher is required", ErrInvalidConfig)
	}

	m := &Multi{
		primary: primary,
		byAlg:   map[Algorithm]Hasher{primary.Algorithm(): primary},
	}
	for _, h := range legacy {
		if h == nil {
			continue
		}
		if _, ok := m.byAlg[h.Algorithm()]; !ok {
			m.byAlg[h.Algorithm()] = h
		}
	}
	return m, nil
}

// Algorithm returns the primary algorithm.
func (m *Multi) Algorithm() Algorithm {
	return m.primary.Algorithm()
}

// Hash hashes with the primary hasher.
func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify dispatches on the encoding of encodedHash.
func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	h, ok := m.byAlg[Detect(encodedHash)]
	if !ok {
		return false, ErrUnsupportedHash
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true for hashes not produced by the primary algorithm, or produced
// with weaker parameters than the primary's.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	alg := Detect(encodedHash)
	if _, ok := m.byAlg[alg]; !ok {
		return false, ErrUnsupportedHash
	}
	if alg != m.primary.Algorithm() {
		return true, nil
	}
	return m.primary.NeedsUpgrade(encodedHash)
}

func checkLength(password string, minBytes, maxBytes int) error {
	if len(password) < minBytes {
		return fmt.Errorf("%w: must be at least %d bytes", ErrPasswordTooShort, minBytes)
	}
	if len(password) > maxBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, maxBytes)
	}
	return nil
}
