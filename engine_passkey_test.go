package shieldforge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/shieldforge/passkey"
)

func passkeyTestConfig() Config {
	cfg := testConfig()
	cfg.Passkey.Enabled = true
	cfg.Passkey.RPName = "Example Corp"
	cfg.Passkey.RPID = "example.com"
	cfg.Passkey.Origins = []string{"https://example.com"}
	return cfg
}

type cloningVerifier struct{}

func (cloningVerifier) VerifyRegistration(_ context.Context, in passkey.RegistrationInput) (*passkey.VerifiedRegistration, error) {
	return &passkey.VerifiedRegistration{UserID: in.Challenge.UserID, CredentialID: []byte("cred")}, nil
}

func (cloningVerifier) VerifyAuthentication(_ context.Context, in passkey.AuthenticationInput) (*passkey.VerifiedAuthentication, error) {
	return &passkey.VerifiedAuthentication{
		UserID:       in.Challenge.UserID,
		CredentialID: in.Authenticator.CredentialID,
		SignCount:    in.Authenticator.SignCount,
		CloneWarning: true,
	}, nil
}

func TestPasskeyCeremoniesThroughEngine(t *testing.T) {
	ctx := context.Background()
	cfg := passkeyTestConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(16)
	engine := newTestEngine(t, cfg, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	require.NotNil(t, engine.Passkeys())

	rp := virtualwebauthn.RelyingParty{Name: "Example Corp", ID: "example.com", Origin: "https://example.com"}
	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	regOpts, err := engine.BeginPasskeyRegistration(ctx, passkey.User{ID: "u1", Name: "alice"}, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(regOpts.Options.Response)
	require.NoError(t, err)
	attOpts, err := virtualwebauthn.ParseAttestationOptions(string(raw))
	require.NoError(t, err)
	attResponse, err := passkey.ParseRegistrationResponse([]byte(virtualwebauthn.CreateAttestationResponse(rp, auth, cred, *attOpts)))
	require.NoError(t, err)

	registered, err := engine.CompletePasskeyRegistration(ctx, attResponse, regOpts.Challenge)
	require.NoError(t, err)
	assert.Equal(t, "u1", registered.UserID)

	auth.AddCredential(cred)
	loginOpts, err := engine.BeginPasskeyAuthentication(ctx, passkey.AuthenticationRequest{UserID: "u1"})
	require.NoError(t, err)

	raw, err = json.Marshal(loginOpts.Options.Response)
	require.NoError(t, err)
	asOpts, err := virtualwebauthn.ParseAssertionOptions(string(raw))
	require.NoError(t, err)
	asResponse, err := passkey.ParseAuthenticationResponse([]byte(virtualwebauthn.CreateAssertionResponse(rp, auth, cred, *asOpts)))
	require.NoError(t, err)

	verified, err := engine.CompletePasskeyAuthentication(ctx, asResponse, loginOpts.Challenge, registered.State())
	require.NoError(t, err)
	assert.Equal(t, "u1", verified.UserID)

	// Replaying the same assertion hits a consumed challenge.
	_, err = engine.CompletePasskeyAuthentication(ctx, asResponse, loginOpts.Challenge, registered.State())
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	snap := engine.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricPasskeyRegistrationStarted])
	assert.Equal(t, uint64(1), snap.Counters[MetricPasskeyRegistrationSuccess])
	assert.Equal(t, uint64(1), snap.Counters[MetricPasskeyAuthenticationSuccess])
	assert.Equal(t, uint64(1), snap.Counters[MetricPasskeyAuthenticationFailure])
	assert.Equal(t, uint64(1), snap.Counters[MetricChallengeReplay])

	var types []string
	timeout := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case ev := <-sink.Events():
			types = append(types, ev.EventType)
		case <-timeout:
			t.Fatalf("expected 3 audit events, got %v", types)
		}
	}
	assert.Equal(t, []string{auditEventPasskeyRegistration, auditEventPasskeyAuthentication, auditEventChallengeReplay}, types)
}

func TestPasskeyCloneWarningCounted(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, passkeyTestConfig(), func(b *Builder) {
		b.WithPasskeyVerifier(cloningVerifier{})
	})

	opts, err := engine.BeginPasskeyAuthentication(ctx, passkey.AuthenticationRequest{UserID: "u1"})
	require.NoError(t, err)

	state := passkey.AuthenticatorState{CredentialID: []byte("cred"), PublicKey: []byte("key"), SignCount: 9}
	result, err := engine.CompletePasskeyAuthentication(ctx, &protocol.ParsedCredentialAssertionData{}, opts.Challenge, state)
	require.NoError(t, err)
	assert.True(t, result.CloneWarning)
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricPasskeyCloneWarning])
}

func TestPasskeysDisabled(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, testConfig())

	assert.Nil(t, engine.Passkeys())

	_, err := engine.BeginPasskeyRegistration(ctx, passkey.User{ID: "u1", Name: "alice"}, nil)
	assert.ErrorIs(t, err, ErrPasskeysDisabled)
	_, err = engine.CompletePasskeyRegistration(ctx, &protocol.ParsedCredentialCreationData{}, "x")
	assert.ErrorIs(t, err, ErrPasskeysDisabled)
	_, err = engine.BeginPasskeyAuthentication(ctx, passkey.AuthenticationRequest{})
	assert.ErrorIs(t, err, ErrPasskeysDisabled)
	_, err = engine.CompletePasskeyAuthentication(ctx, &protocol.ParsedCredentialAssertionData{}, "x", passkey.AuthenticatorState{})
	assert.ErrorIs(t, err, ErrPasskeysDisabled)
}

func TestClearExpiredChallenges(t *testing.T) {
	ctx := context.Background()
	cfg := passkeyTestConfig()
	cfg.Passkey.ChallengeTTL = 10 * time.Millisecond
	cfg.Challenge.JanitorInterval = 0
	engine := newTestEngine(t, cfg)

	for i := 0; i < 3; i++ {
		_, err := engine.BeginPasskeyAuthentication(ctx, passkey.AuthenticationRequest{})
		require.NoError(t, err)
	}
	time.Sleep(30 * time.Millisecond)

	removed, err := engine.ClearExpiredChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, uint64(3), engine.MetricsSnapshot().Counters[MetricChallengesSwept])

	removed, err = engine.ClearExpiredChallenges(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCompletePasskeyRegistrationUnknownChallengeAudited(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, passkeyTestConfig())

	_, err := engine.CompletePasskeyRegistration(ctx, &protocol.ParsedCredentialCreationData{}, "never-issued")
	require.True(t, errors.Is(err, ErrChallengeNotFound))
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricChallengeReplay])
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricPasskeyRegistrationFailure])
}

func TestCompletePasskeyRegistrationWithLoginChallenge(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, passkeyTestConfig(), func(b *Builder) {
		b.WithPasskeyVerifier(cloningVerifier{})
	})

	loginOpts, err := engine.BeginPasskeyAuthentication(ctx, passkey.AuthenticationRequest{UserID: "u1"})
	require.NoError(t, err)

	_, err = engine.CompletePasskeyRegistration(ctx, &protocol.ParsedCredentialCreationData{}, loginOpts.Challenge)
	assert.ErrorIs(t, err, passkey.ErrVerificationFailed)
	assert.Zero(t, engine.MetricsSnapshot().Counters[MetricChallengeReplay])

	state := passkey.AuthenticatorState{CredentialID: []byte("cred"), PublicKey: []byte("key")}
	verified, err := engine.CompletePasskeyAuthentication(ctx, &protocol.ParsedCredentialAssertionData{}, loginOpts.Challenge, state)
	require.NoError(t, err)
	assert.Equal(t, "u1", verified.UserID)
}
