package passkey

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
)

// DefaultChallengeTTL bounds how long a ceremony may stay open.
const DefaultChallengeTTL = 5 * time.Minute

// Config describes the relying party.
type Config struct {
	RPName  string
	RPID    string
	Origins []string

	ChallengeTTL     time.Duration
	UserVerification protocol.UserVerificationRequirement
	ResidentKey      protocol.ResidentKeyRequirement
	Attestation      protocol.ConveyancePreference

	// Algorithms lists accepted COSE algorithms in preference order.
	Algorithms []webauthncose.COSEAlgorithmIdentifier
}

// DefaultAlgorithms are offered when Config.Algorithms is empty.
func DefaultAlgorithms() []webauthncose.COSEAlgorithmIdentifier {
	return []webauthncose.COSEAlgorithmIdentifier{
		webauthncose.AlgES256,
		webauthncose.AlgEdDSA,
		webauthncose.AlgRS256,
	}
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	if c.UserVerification == "" {
		c.UserVerification = protocol.VerificationPreferred
	}
	if c.ResidentKey == "" {
		c.ResidentKey = protocol.ResidentKeyRequirementPreferred
	}
	if c.Attestation == "" {
		c.Attestation = protocol.PreferNoAttestation
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = DefaultAlgorithms()
	}
}

// Validate checks the relying party fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPName) == "" {
		return fmt.Errorf("%w: RPName is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.RPID) == "" {
		return fmt.Errorf("%w: RPID is required", ErrInvalidConfig)
	}
	if strings.Contains(c.RPID, "://") {
		return fmt.Errorf("%w: RPID must be a domain, not an origin", ErrInvalidConfig)
	}
	if len(c.Origins) == 0 {
		return fmt.Errorf("%w: at least one origin is required", ErrInvalidConfig)
	}
	for _, origin := range c.Origins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: invalid origin %q", ErrInvalidConfig, origin)
		}
	}
	if c.ChallengeTTL < 0 {
		return fmt.Errorf("%w: ChallengeTTL must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) credentialParameters() []protocol.CredentialParameter {
	params := make([]protocol.CredentialParameter, 0, len(c.Algorithms))
	for _, alg := range c.Algorithms {
		params = append(params, protocol.CredentialParameter{
			Type:      protocol.PublicKeyCredentialType,
			Algorithm: alg,
		})
	}
	return params
}

func (c *Config) webauthnConfig() *webauthn.Config {
	timeout := webauthn.TimeoutConfig{
		Enforce:    true,
		Timeout:    c.ChallengeTTL,
		TimeoutUVD: c.ChallengeTTL,
	}

	return &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPName,
		RPOrigins:             append([]string(nil), c.Origins...),
		AttestationPreference: c.Attestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      c.ResidentKey,
			UserVerification: c.UserVerification,
		},
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		},
	}
}
