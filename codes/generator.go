package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode/utf8"
)

const (
	// Digits is the alphabet used for numeric reset codes.
	Digits = "0123456789"
	// Alphanumeric is the 62-symbol alphabet used for opaque tokens.
	Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultResetCodeLength is used when ResetCode is called with a non-positive length.
	DefaultResetCodeLength = 6
	// DefaultTokenLength is used when OpaqueToken is called with a non-positive length.
	DefaultTokenLength = 32

	maxLength = 1024
)

var (
	// ErrInvalidLength is returned when the requested length is outside 1..1024.
	ErrInvalidLength = errors.New("codes: invalid length")
	// ErrInvalidAlphabet is returned for alphabets with fewer than two distinct symbols.
	ErrInvalidAlphabet = errors.New("codes: invalid alphabet")
	// ErrEntropyUnavailable wraps failures of the operating system random source.
	ErrEntropyUnavailable = errors.New("codes: entropy source unavailable")
)

// randReader is swapped in tests to simulate an unavailable entropy source.
var randReader io.Reader = rand.Reader

// Generate returns exactly length symbols drawn uniformly from alphabet.
//
// Generate fails with ErrEntropyUnavailable instead of degrading to a weaker source.
func Generate(length int, alphabet string) (string, error) {
	if length < 1 || length > maxLength {
		return "", ErrInvalidLength
	}

	symbols, err := splitAlphabet(alphabet)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(length * utf8.UTFMax)

	max := big.NewInt(int64(len(symbols)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(randReader, max)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		b.WriteRune(symbols[n.Int64()])
	}

	return b.String(), nil
}

// ResetCode returns a numeric code. A non-positive length selects DefaultResetCodeLength.
func ResetCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultResetCodeLength
	}
	return Generate(length, Digits)
}

// OpaqueToken returns an alphanumeric token. A non-positive length selects DefaultTokenLength.
func OpaqueToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultTokenLength
	}
	return Generate(length, Alphanumeric)
}

// MustResetCode is like ResetCode but panics when no code can be produced.
func MustResetCode(length int) string {
	code, err := ResetCode(length)
	if err != nil {
		panic(err)
	}
	return code
}

// MustOpaqueToken is like OpaqueToken but panics when no token can be produced.
func MustOpaqueToken(length int) string {
	token, err := OpaqueToken(length)
	if err != nil {
		panic(err)
	}
	return token
}

func splitAlphabet(alphabet string) ([]rune, error) {
	if !utf8.ValidString(alphabet) {
		return nil, ErrInvalidAlphabet
	}

	symbols := []rune(alphabet)
	seen := make(map[rune]struct{}, len(symbols))
	for _, r := range symbols {
		if _, dup := seen[r]; dup {
			return nil, ErrInvalidAlphabet
		}
		seen[r] = struct{}{}
	}
	if len(symbols) < 2 {
		return nil, ErrInvalidAlphabet
	}

	return symbols, nil
}
