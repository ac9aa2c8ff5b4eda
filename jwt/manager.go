package jwt

import (
	"bytes"
	"errors"
	"time"
)

const minSecretBytes = 32

// Config holds the signing settings for a Manager.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Secret            []byte
	Expiry            time.Duration
	Issuer            string
	Audience          string
	AllowedAlgorithms []string
	Leeway            time.Duration
	RequireIAT        bool
	MaxFutureIAT      time.Duration

	// KeyID is written to new tokens. VerifySecrets maps kid values to secrets accepted
	// during verification, which allows rotating Secret without invalidating live tokens.
	KeyID         string
	VerifySecrets map[string][]byte

	// AllowShortSecret disables the 32-byte minimum. Only tests should set it.
	AllowShortSecret bool
}

// Manager binds Sign and Verify to a fixed configuration.
type Manager struct {
	config  Config
	allowed []string
}

// NewManager validates cfg and returns a Manager.
//
// NewManager may return an error when the secret, expiry, or algorithm list is unusable.
// The returned Manager is safe for concurrent use.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if len(cfg.Secret) < minSecretBytes && !cfg.AllowShortSecret {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.Expiry < 0 {
		return nil, ErrInvalidExpiry
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("jwt leeway must be >= 0")
	}
	if cfg.MaxFutureIAT < 0 {
		return nil, errors.New("jwt max future iat must be >= 0")
	}

	allowed := AllowedAlgorithms(cfg.AllowedAlgorithms)
	if len(cfg.AllowedAlgorithms) > 0 && len(allowed) != len(cfg.AllowedAlgorithms) {
		return nil, errors.New("jwt allowed algorithms must be distinct HMAC algorithms")
	}
	if !algorithmAllowed(AlgHS256, allowed) {
		return nil, errors.New("jwt allowed algorithms must include HS256")
	}

	cfg.Secret = cloneBytes(cfg.Secret)
	if len(cfg.VerifySecrets) > 0 {
		secrets := make(map[string][]byte, len(cfg.VerifySecrets))
		for kid, secret := range cfg.VerifySecrets {
			if kid == "" || len(secret) == 0 {
				return nil, errors.New("jwt verify secrets require non-empty kid and secret")
			}
			secrets[kid] = cloneBytes(secret)
		}
		// The signing key must verify its own tokens, so it joins the map.
		if cfg.KeyID == "" {
			return nil, errors.New("jwt verify secrets require a KeyID for the signing secret")
		}
		if existing, ok := secrets[cfg.KeyID]; ok && !bytes.Equal(existing, cfg.Secret) {
			return nil, errors.New("jwt verify secret for KeyID differs from the signing secret")
		}
		secrets[cfg.KeyID] = cloneBytes(cfg.Secret)
		cfg.VerifySecrets = secrets
	}

	return &Manager{config: cfg, allowed: allowed}, nil
}

// CreateToken signs payload with the configured secret, expiry, issuer and audience.
func (m *Manager) CreateToken(payload Payload) (string, error) {
	return m.CreateTokenWithExpiry(payload, m.config.Expiry)
}

// CreateTokenWithExpiry is CreateToken with an explicit lifetime.
func (m *Manager) CreateTokenWithExpiry(payload Payload, expiry time.Duration) (string, error) {
	return Sign(payload, m.config.Secret, expiry, SignOptions{
		Issuer:   m.config.Issuer,
		Audience: m.config.Audience,
		KeyID:    m.config.KeyID,
	})
}

// ParseToken verifies token against the configured secrets and claim expectations.
//
// ParseToken returns an error matching ErrInvalidToken on any failure.
func (m *Manager) ParseToken(token string) (*Claims, error) {
	claims, err := verify(token, m.secretFor, VerifyOptions{
		AllowedAlgorithms: m.allowed,
		Issuer:            m.config.Issuer,
		Audience:          m.config.Audience,
		Leeway:            m.config.Leeway,
		RequireIssuedAt:   m.config.RequireIAT,
	})
	if err != nil {
		return nil, err
	}

	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
			return nil, invalid(ErrTokenNotValidYet)
		}
	}

	return claims, nil
}

// Expiry reports the lifetime applied by CreateToken.
func (m *Manager) Expiry() time.Duration {
	return m.config.Expiry
}

func (m *Manager) secretFor(kid string) ([]byte, error) {
	if len(m.config.VerifySecrets) > 0 {
		if kid == "" {
			return nil, ErrUnknownKey
		}
		secret, ok := m.config.VerifySecrets[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return secret, nil
	}

	if m.config.KeyID != "" && kid != m.config.KeyID {
		return nil, ErrUnknownKey
	}
	return m.config.Secret, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
