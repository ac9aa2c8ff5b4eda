package shieldforge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/MrEthical07/shieldforge/codes"
	"github.com/MrEthical07/shieldforge/jwt"
	"github.com/MrEthical07/shieldforge/passkey"
	"github.com/MrEthical07/shieldforge/password"
)

// Config is the complete Engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Passkey       PasskeyConfig
	Challenge     ChallengeConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures IssueToken and ValidateToken. Leaving Secret empty disables both;
// the stateless GenerateToken and VerifyToken remain available.
type TokenConfig struct {
	Secret            []byte
	Expiry            time.Duration
	Issuer            string
	Audience          string
	AllowedAlgorithms []string
	Leeway            time.Duration
	RequireIAT        bool
	MaxFutureIAT      time.Duration
	KeyID             string
	VerifySecrets     map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the primary password hash. Hashes of the other algorithm are
// still verified so stores can migrate gradually.
type PasswordConfig struct {
	Algorithm        password.Algorithm
	Memory           uint32 // in KiB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	BcryptCost       int
	MinPasswordBytes int
	MaxPasswordBytes int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig configures RequestPasswordReset and ConfirmPasswordReset.
type PasswordResetConfig struct {
	Enabled                  bool
	CodeLength               int
	ResetTTL                 time.Duration
	MaxAttempts              int
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	RedisPrefix              string
}

/*
====================================
PASSKEY CONFIG
====================================
*/

// PasskeyConfig describes the WebAuthn relying party. Passkeys are disabled unless Enabled is set.
type PasskeyConfig struct {
	Enabled          bool
	RPName           string
	RPID             string
	Origins          []string
	ChallengeTTL     time.Duration
	UserVerification protocol.UserVerificationRequirement
	ResidentKey      protocol.ResidentKeyRequirement
	Attestation      protocol.ConveyancePreference
}

// ChallengeConfig configures the challenge store the Engine creates when none is injected.
type ChallengeConfig struct {
	RedisPrefix     string
	JanitorInterval time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	argon := password.DefaultArgon2Config()

	return Config{
		Token: TokenConfig{
			Expiry:            jwt.DefaultExpiry,
			AllowedAlgorithms: []string{jwt.AlgHS256},
			MaxFutureIAT:      time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:        password.AlgorithmArgon2id,
			Memory:           argon.Memory,
			Time:             argon.Time,
			Parallelism:      argon.Parallelism,
			SaltLength:       argon.SaltLength,
			KeyLength:        argon.KeyLength,
			BcryptCost:       12,
			MinPasswordBytes: password.DefaultMinPasswordBytes,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  false,
			CodeLength:               codes.DefaultResetCodeLength,
			ResetTTL:                 15 * time.Minute,
			MaxAttempts:              5,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			RedisPrefix:              "sfr",
		},
		Passkey: PasskeyConfig{
			Enabled:      false,
			ChallengeTTL: passkey.DefaultChallengeTTL,
		},
		Challenge: ChallengeConfig{
			RedisPrefix:     "sfc",
			JanitorInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.AllowedAlgorithms = append([]string(nil), cfg.Token.AllowedAlgorithms...)
	if cfg.Token.VerifySecrets != nil {
		out.Token.VerifySecrets = make(map[string][]byte, len(cfg.Token.VerifySecrets))
		for kid, secret := range cfg.Token.VerifySecrets {
			out.Token.VerifySecrets[kid] = cloneBytes(secret)
		}
	}
	out.Passkey.Origins = append([]string(nil), cfg.Passkey.Origins...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting in c.
func (c *Config) Validate() error {
	// Token
	if c.Token.Expiry <= 0 {
		return errors.New("Token Expiry must be > 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if len(c.Token.Secret) > 0 && len(c.Token.Secret) < 32 {
		return errors.New("Token Secret must be at least 32 bytes")
	}
	for _, alg := range c.Token.AllowedAlgorithms {
		if strings.EqualFold(alg, "none") {
			return errors.New("Token AllowedAlgorithms must not include none")
		}
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmArgon2id:
		if err := c.argon2Config().Validate(); err != nil {
			return fmt.Errorf("Password: %w", err)
		}
	case password.AlgorithmBcrypt:
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	default:
		return errors.New("Password Algorithm must be argon2id or bcrypt")
	}
	if c.Password.MinPasswordBytes < 1 {
		return errors.New("Password MinPasswordBytes must be >= 1")
	}
	if c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes {
		return errors.New("Password MaxPasswordBytes must be >= MinPasswordBytes")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.CodeLength < 6 || c.PasswordReset.CodeLength > 10 {
			return errors.New("PasswordReset CodeLength must be between 6 and 10")
		}
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
		if c.PasswordReset.ResetTTL > time.Hour {
			return errors.New("PasswordReset ResetTTL must be <= 1h")
		}
		if c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.MaxAttempts > 10 {
			return errors.New("PasswordReset MaxAttempts must be between 1 and 10")
		}
		if c.PasswordReset.RedisPrefix == "" {
			return errors.New("PasswordReset RedisPrefix must not be empty")
		}
	}

	// Passkeys
	if c.Passkey.Enabled {
		pk := c.passkeyConfig()
		if err := pk.Validate(); err != nil {
			return err
		}
	}
	if c.Challenge.JanitorInterval < 0 {
		return errors.New("Challenge JanitorInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func (c *Config) argon2Config() password.Argon2Config {
	return password.Argon2Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MinPasswordBytes: c.Password.MinPasswordBytes,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c *Config) passkeyConfig() passkey.Config {
	return passkey.Config{
		RPName:           c.Passkey.RPName,
		RPID:             c.Passkey.RPID,
		Origins:          append([]string(nil), c.Passkey.Origins...),
		ChallengeTTL:     c.Passkey.ChallengeTTL,
		UserVerification: c.Passkey.UserVerification,
		ResidentKey:      c.Passkey.ResidentKey,
		Attestation:      c.Passkey.Attestation,
	}
}

func (c *Config) jwtConfig() jwt.Config {
	return jwt.Config{
		Secret:            cloneBytes(c.Token.Secret),
		Expiry:            c.Token.Expiry,
		Issuer:            c.Token.Issuer,
		Audience:          c.Token.Audience,
		AllowedAlgorithms: append([]string(nil), c.Token.AllowedAlgorithms...),
		Leeway:            c.Token.Leeway,
		RequireIAT:        c.Token.RequireIAT,
		MaxFutureIAT:      c.Token.MaxFutureIAT,
		KeyID:             c.Token.KeyID,
		VerifySecrets:     c.Token.VerifySecrets,
	}
}
