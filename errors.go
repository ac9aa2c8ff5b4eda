package shieldforge

import (
	"errors"

	"github.com/MrEthical07/shieldforge/jwt"
	"github.com/MrEthical07/shieldforge/passkey"
)

var (
	// ErrInvalidToken is returned by VerifyToken and ValidateToken for any rejected token.
	ErrInvalidToken = jwt.ErrInvalidToken
	// ErrTokenNotConfigured is returned by IssueToken and ValidateToken when no signing secret is configured.
	ErrTokenNotConfigured = errors.New("token signing not configured")
	// ErrInvalidCredentials is returned by VerifyPassword for malformed or unsupported hashes.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by UserProvider implementations for unknown identifiers.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy is returned when a new password violates length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordResetDisabled is returned when the reset workflow is not enabled.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrPasswordResetInvalid is returned for unknown, expired, or mismatched reset codes.
	ErrPasswordResetInvalid = errors.New("password reset code invalid")
	// ErrPasswordResetRateLimited is returned when a reset request or confirmation is throttled.
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	// ErrPasswordResetUnavailable wraps reset store and limiter backend failures.
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")
	// ErrPasswordResetAttempts is returned when a reset code is burned after too many wrong guesses.
	ErrPasswordResetAttempts = errors.New("password reset attempts exceeded")
	// ErrPasskeysDisabled is returned by passkey operations when no relying party is configured.
	ErrPasskeysDisabled = errors.New("passkeys disabled")
	// ErrChallengeNotFound is returned when a ceremony challenge is absent, expired, or already used.
	ErrChallengeNotFound = passkey.ErrChallengeNotFound
	// ErrEngineNotReady is returned when an Engine method is called on a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
