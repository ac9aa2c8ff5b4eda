package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/shieldforge/challenge"
)

// Verifier performs the cryptographic half of a ceremony after the coordinator has
// consumed the challenge.
type Verifier interface {
	VerifyRegistration(ctx context.Context, in RegistrationInput) (*VerifiedRegistration, error)
	VerifyAuthentication(ctx context.Context, in AuthenticationInput) (*VerifiedAuthentication, error)
}

// WebAuthnVerifier verifies attestations and assertions with go-webauthn.
type WebAuthnVerifier struct {
	webauthn *webauthn.WebAuthn
	config   Config
}

// NewWebAuthnVerifier builds a verifier for cfg. cfg is defaulted and validated.
func NewWebAuthnVerifier(cfg Config) (*WebAuthnVerifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wa, err := webauthn.New(cfg.webauthnConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &WebAuthnVerifier{webauthn: wa, config: cfg}, nil
}

// VerifyRegistration checks the attestation against the consumed challenge.
func (v *WebAuthnVerifier) VerifyRegistration(_ context.Context, in RegistrationInput) (*VerifiedRegistration, error) {
	if in.Response == nil {
		return nil, ErrInvalidResponse
	}

	userID := []byte(in.Challenge.UserID)
	user := &webauthnUser{id: userID}

	credential, err := v.webauthn.CreateCredential(user, v.sessionData(in.Challenge, userID), in.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return &VerifiedRegistration{
		UserID:          in.Challenge.UserID,
		CredentialID:    credential.ID,
		PublicKey:       credential.PublicKey,
		SignCount:       credential.Authenticator.SignCount,
		AttestationType: credential.AttestationType,
		AAGUID:          credential.Authenticator.AAGUID,
		Transports:      credential.Transport,
		UserVerified:    credential.Flags.UserVerified,
		BackupEligible:  credential.Flags.BackupEligible,
		BackupState:     credential.Flags.BackupState,
	}, nil
}

// VerifyAuthentication checks the assertion signature and counter.
//
// A challenge bound to a user is validated as a user-identified login. An unbound
// challenge is validated as a discoverable login and the user is taken from the
// response's user handle.
func (v *WebAuthnVerifier) VerifyAuthentication(_ context.Context, in AuthenticationInput) (*VerifiedAuthentication, error) {
	if in.Response == nil {
		return nil, ErrInvalidResponse
	}

	stored := toCredential(in.Authenticator)

	var (
		credential *webauthn.Credential
		userID     []byte
		err        error
	)

	if in.Challenge.UserID != "" {
		userID = []byte(in.Challenge.UserID)
		if len(in.Authenticator.UserHandle) > 0 && !bytes.Equal(in.Authenticator.UserHandle, userID) {
			return nil, fmt.Errorf("%w: credential belongs to another user", ErrVerificationFailed)
		}

		user := &webauthnUser{id: userID, credentials: []webauthn.Credential{stored}}
		credential, err = v.webauthn.ValidateLogin(user, v.sessionData(in.Challenge, userID), in.Response)
	} else {
		handler := func(rawID, userHandle []byte) (webauthn.User, error) {
			if !bytes.Equal(rawID, in.Authenticator.CredentialID) {
				return nil, errors.New("credential id does not match authenticator state")
			}
			if len(in.Authenticator.UserHandle) > 0 && !bytes.Equal(userHandle, in.Authenticator.UserHandle) {
				return nil, errors.New("user handle does not match authenticator state")
			}
			userID = userHandle
			return &webauthnUser{id: userHandle, credentials: []webauthn.Credential{stored}}, nil
		}
		credential, err = v.webauthn.ValidateDiscoverableLogin(handler, v.sessionData(in.Challenge, nil), in.Response)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return &VerifiedAuthentication{
		UserID:       string(userID),
		CredentialID: credential.ID,
		SignCount:    credential.Authenticator.SignCount,
		CloneWarning: credential.Authenticator.CloneWarning,
		UserVerified: credential.Flags.UserVerified,
		BackupState:  credential.Flags.BackupState,
	}, nil
}

func (v *WebAuthnVerifier) sessionData(c challenge.Challenge, userID []byte) webauthn.SessionData {
	return webauthn.SessionData{
		Challenge:        c.Value,
		RelyingPartyID:   v.config.RPID,
		UserID:           userID,
		Expires:          c.ExpiresAt,
		UserVerification: v.config.UserVerification,
		CredParams:       v.config.credentialParameters(),
	}
}

func toCredential(state AuthenticatorState) webauthn.Credential {
	return webauthn.Credential{
		ID:              state.CredentialID,
		PublicKey:       state.PublicKey,
		AttestationType: state.AttestationType,
		Flags: webauthn.CredentialFlags{
			BackupEligible: state.BackupEligible,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: state.SignCount,
		},
	}
}

// ParseRegistrationResponse decodes a client attestation response body.
func ParseRegistrationResponse(body []byte) (*protocol.ParsedCredentialCreationData, error) {
	var response protocol.CredentialCreationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	parsed, err := response.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return parsed, nil
}

// ParseAuthenticationResponse decodes a client assertion response body.
func ParseAuthenticationResponse(body []byte) (*protocol.ParsedCredentialAssertionData, error) {
	var response protocol.CredentialAssertionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	parsed, err := response.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return parsed, nil
}
