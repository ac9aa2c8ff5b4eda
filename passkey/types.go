package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/shieldforge/challenge"
)

// maxUserHandleBytes is the WebAuthn limit for user.id.
const maxUserHandleBytes = 64

// User identifies the account a credential is being registered for.
type User struct {
	ID          string
	Name        string
	DisplayName string
}

// AuthenticationRequest scopes an authentication ceremony. UserID is optional;
// leaving it empty starts a username-less (discoverable credential) ceremony.
type AuthenticationRequest struct {
	UserID               string
	AllowedCredentialIDs [][]byte
}

// RegistrationOptions is returned by BeginRegistration. Options is sent to the client
// as-is; Challenge is the value the client must echo back at completion.
type RegistrationOptions struct {
	Challenge string                       `json:"challenge"`
	ExpiresAt time.Time                    `json:"expiresAt"`
	Options   *protocol.CredentialCreation `json:"options"`
}

// AuthenticationOptions is returned by BeginAuthentication.
type AuthenticationOptions struct {
	Challenge string                        `json:"challenge"`
	ExpiresAt time.Time                     `json:"expiresAt"`
	Options   *protocol.CredentialAssertion `json:"options"`
}

// AuthenticatorState is the stored view of a registered credential.
type AuthenticatorState struct {
	CredentialID    []byte
	PublicKey       []byte
	SignCount       uint32
	UserHandle      []byte
	AttestationType string
	BackupEligible  bool
}

// VerifiedRegistration describes a newly attested credential.
type VerifiedRegistration struct {
	UserID          string
	CredentialID    []byte
	PublicKey       []byte
	SignCount       uint32
	AttestationType string
	AAGUID          []byte
	Transports      []protocol.AuthenticatorTransport
	UserVerified    bool
	BackupEligible  bool
	BackupState     bool
}

// State converts the registration into the form CompleteAuthentication expects.
func (r *VerifiedRegistration) State() AuthenticatorState {
	return AuthenticatorState{
		CredentialID:    r.CredentialID,
		PublicKey:       r.PublicKey,
		SignCount:       r.SignCount,
		UserHandle:      []byte(r.UserID),
		AttestationType: r.AttestationType,
		BackupEligible:  r.BackupEligible,
	}
}

// VerifiedAuthentication describes a successful assertion.
type VerifiedAuthentication struct {
	UserID       string
	CredentialID []byte
	SignCount    uint32
	// CloneWarning is set when the authenticator counter did not advance.
	CloneWarning bool
	UserVerified bool
	BackupState  bool
}

// RegistrationInput is what a Verifier needs to check an attestation.
type RegistrationInput struct {
	Challenge challenge.Challenge
	Response  *protocol.ParsedCredentialCreationData
}

// AuthenticationInput is what a Verifier needs to check an assertion.
type AuthenticationInput struct {
	Challenge     challenge.Challenge
	Response      *protocol.ParsedCredentialAssertionData
	Authenticator AuthenticatorState
}

// webauthnUser adapts a user id and its credentials to webauthn.User.
type webauthnUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return u.id }
func (u *webauthnUser) WebAuthnName() string                       { return u.name }
func (u *webauthnUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func credentialDescriptors(ids [][]byte) []protocol.CredentialDescriptor {
	if len(ids) == 0 {
		return nil
	}
	out := make([]protocol.CredentialDescriptor, 0, len(ids))
	for _, id := range ids {
		if len(id) == 0 {
			continue
		}
		out = append(out, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
		})
	}
	return out
}
