package shieldforge

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/shieldforge/password"
)

// HashPassword hashes plaintext with the configured primary algorithm.
//
// HashPassword returns an error matching ErrPasswordPolicy when plaintext is outside
// the configured length bounds.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return "", mapPasswordError(err)
	}
	e.metricInc(MetricPasswordHashed)
	return hash, nil
}

// VerifyPassword describes the verifypassword operation and its observable behavior.
//
// VerifyPassword checks plaintext against an argon2id or bcrypt hash. A mismatch is
// reported through Match, not an error. NeedsRehash is only meaningful when Match is
// set. Malformed and unsupported hashes return ErrInvalidCredentials.
func (e *Engine) VerifyPassword(plaintext, encodedHash string) (PasswordVerification, error) {
	if e == nil || e.passwordHash == nil {
		return PasswordVerification{}, ErrEngineNotReady
	}

	ok, err := e.passwordHash.Verify(plaintext, encodedHash)
	if err != nil {
		e.metricInc(MetricPasswordVerifyFailure)
		return PasswordVerification{}, mapPasswordError(err)
	}
	if !ok {
		e.metricInc(MetricPasswordVerifyFailure)
		return PasswordVerification{}, nil
	}

	e.metricInc(MetricPasswordVerifySuccess)
	upgrade, err := e.passwordHash.NeedsUpgrade(encodedHash)
	if err != nil {
		return PasswordVerification{Match: true}, nil
	}
	return PasswordVerification{Match: true, NeedsRehash: upgrade}, nil
}

func mapPasswordError(err error) error {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	case errors.Is(err, password.ErrMalformedHash), errors.Is(err, password.ErrUnsupportedHash):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	default:
		return err
	}
}
