package passkey

import (
	"errors"

	"github.com/MrEthical07/shieldforge/challenge"
)

var (
	// ErrChallengeNotFound is returned when the expected challenge is absent, expired, or already consumed.
	ErrChallengeNotFound = challenge.ErrNotFound
	// ErrVerificationFailed wraps attestation or assertion verification failures.
	ErrVerificationFailed = errors.New("passkey verification failed")
	// ErrInvalidConfig is returned by NewCoordinator for unusable relying party settings.
	ErrInvalidConfig = errors.New("invalid passkey config")
	// ErrInvalidUser is returned when a registration user has no id or name.
	ErrInvalidUser = errors.New("invalid passkey user")
	// ErrInvalidResponse is returned for nil ceremony responses.
	ErrInvalidResponse = errors.New("invalid passkey response")
	// ErrInvalidAuthenticator is returned when the stored authenticator state is incomplete.
	ErrInvalidAuthenticator = errors.New("invalid authenticator state")
	// ErrChallengeUnavailable wraps challenge store failures other than not-found.
	ErrChallengeUnavailable = errors.New("passkey challenge store unavailable")
)
