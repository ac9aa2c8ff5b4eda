package shieldforge

import (
	"context"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/MrEthical07/shieldforge/passkey"
)

// BeginPasskeyRegistration starts a registration ceremony for user.
//
// BeginPasskeyRegistration returns ErrPasskeysDisabled unless Passkey.Enabled is set.
func (e *Engine) BeginPasskeyRegistration(ctx context.Context, user passkey.User, excludeCredentialIDs [][]byte) (*passkey.RegistrationOptions, error) {
	if e == nil || e.passkeys == nil {
		return nil, ErrPasskeysDisabled
	}

	opts, err := e.passkeys.BeginRegistration(ctx, user, excludeCredentialIDs)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasskeyRegistrationStarted)
	return opts, nil
}

// CompletePasskeyRegistration describes the completepasskeyregistration operation and its observable behavior.
//
// CompletePasskeyRegistration consumes expectedChallenge and verifies the attestation.
// A challenge that is absent, expired or already used yields ErrChallengeNotFound and
// a challenge_replay audit event.
func (e *Engine) CompletePasskeyRegistration(
	ctx context.Context,
	response *protocol.ParsedCredentialCreationData,
	expectedChallenge string,
) (*passkey.VerifiedRegistration, error) {
	if e == nil || e.passkeys == nil {
		return nil, ErrPasskeysDisabled
	}

	result, err := e.passkeys.CompleteRegistration(ctx, response, expectedChallenge)
	if err != nil {
		e.metricInc(MetricPasskeyRegistrationFailure)
		e.auditPasskeyFailure(ctx, auditEventPasskeyRegistration, err)
		return nil, err
	}

	e.metricInc(MetricPasskeyRegistrationSuccess)
	e.emitAudit(ctx, auditEventPasskeyRegistration, true, result.UserID, nil, func() map[string]string {
		return map[string]string{
			"attestation_type": result.AttestationType,
		}
	})
	return result, nil
}

// BeginPasskeyAuthentication starts an authentication ceremony. Leave req.UserID
// empty for a username-less login.
func (e *Engine) BeginPasskeyAuthentication(ctx context.Context, req passkey.AuthenticationRequest) (*passkey.AuthenticationOptions, error) {
	if e == nil || e.passkeys == nil {
		return nil, ErrPasskeysDisabled
	}

	opts, err := e.passkeys.BeginAuthentication(ctx, req)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasskeyAuthenticationStarted)
	return opts, nil
}

// CompletePasskeyAuthentication describes the completepasskeyauthentication operation and its observable behavior.
//
// CompletePasskeyAuthentication consumes expectedChallenge and verifies the assertion
// against authenticator. Callers must persist the returned SignCount. A counter that
// did not advance is reported through CloneWarning and a passkey_clone_warning event;
// the login itself still succeeds.
func (e *Engine) CompletePasskeyAuthentication(
	ctx context.Context,
	response *protocol.ParsedCredentialAssertionData,
	expectedChallenge string,
	authenticator passkey.AuthenticatorState,
) (*passkey.VerifiedAuthentication, error) {
	if e == nil || e.passkeys == nil {
		return nil, ErrPasskeysDisabled
	}

	result, err := e.passkeys.CompleteAuthentication(ctx, response, expectedChallenge, authenticator)
	if err != nil {
		e.metricInc(MetricPasskeyAuthenticationFailure)
		e.auditPasskeyFailure(ctx, auditEventPasskeyAuthentication, err)
		return nil, err
	}

	if result.CloneWarning {
		e.metricInc(MetricPasskeyCloneWarning)
		e.emitAudit(ctx, auditEventPasskeyCloneWarning, false, result.UserID, nil, nil)
	}

	e.metricInc(MetricPasskeyAuthenticationSuccess)
	e.emitAudit(ctx, auditEventPasskeyAuthentication, true, result.UserID, nil, nil)
	return result, nil
}

func (e *Engine) auditPasskeyFailure(ctx context.Context, eventType string, err error) {
	if errors.Is(err, ErrChallengeNotFound) {
		e.metricInc(MetricChallengeReplay)
		e.emitAudit(ctx, auditEventChallengeReplay, false, "", err, func() map[string]string {
			return map[string]string{
				"ceremony": eventType,
			}
		})
		return
	}
	e.emitAudit(ctx, eventType, false, "", err, nil)
}
