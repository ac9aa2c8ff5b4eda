package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

const valueBytes = 32

var (
	// ErrNotFound is returned when a challenge is absent, expired, or already consumed.
	ErrNotFound = errors.New("challenge not found")
	// ErrInvalidChallenge is returned for empty values or non-positive TTLs.
	ErrInvalidChallenge = errors.New("invalid challenge")
	// ErrUnavailable wraps backend failures of a shared store.
	ErrUnavailable = errors.New("challenge store unavailable")
)

// Kind names the ceremony a challenge was issued for.
type Kind string

const (
	// KindUnspecified marks challenges written through Store.Store.
	KindUnspecified Kind = ""
	// KindRegistration marks credential creation challenges.
	KindRegistration Kind = "registration"
	// KindAuthentication marks assertion challenges.
	KindAuthentication Kind = "authentication"
)

// Challenge is a stored ceremony challenge.
type Challenge struct {
	Value     string
	UserID    string
	Kind      Kind
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether c is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}

// Store is the persistence seam for ceremony challenges.
type Store interface {
	// Store records value with an optional user binding. It expires after ttl.
	Store(ctx context.Context, value, userID string, ttl time.Duration) error
	// Get returns the challenge, or ErrNotFound when absent or expired.
	Get(ctx context.Context, value string) (*Challenge, error)
	// Delete removes value. Deleting an absent value is not an error.
	Delete(ctx context.Context, value string) error
	// Consume atomically removes and returns value, or returns ErrNotFound.
	Consume(ctx context.Context, value string) (*Challenge, error)
	// ClearExpired sweeps expired entries and reports how many were removed.
	ClearExpired(ctx context.Context) (int, error)
}

// KindStore is implemented by stores that can record the issuing ceremony.
// Both bundled stores implement it.
type KindStore interface {
	Store
	StoreKind(ctx context.Context, value string, kind Kind, userID string, ttl time.Duration) error
}

// NewValue returns a base64url encoded random challenge.
func NewValue() (string, error) {
	var raw [valueBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("challenge entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func validate(value string, ttl time.Duration) error {
	if value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidChallenge)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be > 0", ErrInvalidChallenge)
	}
	return nil
}
