package passkey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/shieldforge/challenge"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVerifier replaces the go-webauthn backed verifier.
func WithVerifier(v Verifier) Option {
	return func(c *Coordinator) {
		if v != nil {
			c.verifier = v
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator runs passkey ceremonies against a challenge store.
//
// Coordinator is safe for concurrent use when its store and verifier are.
type Coordinator struct {
	config   Config
	store    challenge.Store
	verifier Verifier
	webauthn *webauthn.WebAuthn
	logger   *slog.Logger
}

// NewCoordinator validates cfg and wires the coordinator to store.
func NewCoordinator(cfg Config, store challenge.Store, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: challenge store is required", ErrInvalidConfig)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wa, err := webauthn.New(cfg.webauthnConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := &Coordinator{
		config:   cfg,
		store:    store,
		webauthn: wa,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.verifier == nil {
		c.verifier = &WebAuthnVerifier{webauthn: wa, config: cfg}
	}

	return c, nil
}

// Config returns the defaulted relying party configuration.
func (c *Coordinator) Config() Config {
	return c.config
}

// BeginRegistration creates credential creation options for user and stores the
// challenge bound to user.ID. Credentials in excludeCredentialIDs are listed so the
// authenticator refuses to register twice.
func (c *Coordinator) BeginRegistration(ctx context.Context, user User, excludeCredentialIDs [][]byte) (*RegistrationOptions, error) {
	if user.ID == "" || len(user.ID) > maxUserHandleBytes {
		return nil, fmt.Errorf("%w: id must be 1..%d bytes", ErrInvalidUser, maxUserHandleBytes)
	}
	if user.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.Name
	}

	opts := []webauthn.RegistrationOption{
		webauthn.WithCredentialParameters(c.config.credentialParameters()),
	}
	if exclusions := credentialDescriptors(excludeCredentialIDs); len(exclusions) > 0 {
		opts = append(opts, webauthn.WithExclusions(exclusions))
	}

	creation, session, err := c.webauthn.BeginRegistration(&webauthnUser{
		id:          []byte(user.ID),
		name:        user.Name,
		displayName: displayName,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	expiresAt, err := c.remember(ctx, session.Challenge, challenge.KindRegistration, user.ID)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "passkey registration started", "user_id", user.ID, "excluded", len(excludeCredentialIDs))

	return &RegistrationOptions{
		Challenge: session.Challenge,
		ExpiresAt: expiresAt,
		Options:   creation,
	}, nil
}

// CompleteRegistration consumes expectedChallenge and verifies the attestation.
//
// It returns ErrChallengeNotFound when the challenge was never issued, has expired,
// or was already used. A challenge issued by BeginAuthentication is rejected with
// ErrVerificationFailed and left in the store.
func (c *Coordinator) CompleteRegistration(
	ctx context.Context,
	response *protocol.ParsedCredentialCreationData,
	expectedChallenge string,
) (*VerifiedRegistration, error) {
	if response == nil {
		return nil, ErrInvalidResponse
	}

	consumed, err := c.consume(ctx, expectedChallenge, challenge.KindRegistration)
	if err != nil {
		return nil, err
	}
	if consumed.UserID == "" {
		return nil, fmt.Errorf("%w: challenge was not issued for registration", ErrVerificationFailed)
	}

	result, err := c.verifier.VerifyRegistration(ctx, RegistrationInput{
		Challenge: *consumed,
		Response:  response,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "passkey registration rejected", "user_id", consumed.UserID, "error", err)
		return nil, err
	}

	c.logger.InfoContext(ctx, "passkey registered", "user_id", result.UserID)
	return result, nil
}

// BeginAuthentication creates assertion options and stores the challenge. The
// challenge is bound to req.UserID when set.
func (c *Coordinator) BeginAuthentication(ctx context.Context, req AuthenticationRequest) (*AuthenticationOptions, error) {
	if len(req.UserID) > maxUserHandleBytes {
		return nil, fmt.Errorf("%w: id must be at most %d bytes", ErrInvalidUser, maxUserHandleBytes)
	}

	opts := []webauthn.LoginOption{
		webauthn.WithUserVerification(c.config.UserVerification),
	}
	if allowed := credentialDescriptors(req.AllowedCredentialIDs); len(allowed) > 0 {
		opts = append(opts, webauthn.WithAllowedCredentials(allowed))
	}

	assertion, session, err := c.webauthn.BeginDiscoverableLogin(opts...)
	if err != nil {
		return nil, fmt.Errorf("begin authentication: %w", err)
	}

	expiresAt, err := c.remember(ctx, session.Challenge, challenge.KindAuthentication, req.UserID)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "passkey authentication started", "user_id", req.UserID, "allowed", len(req.AllowedCredentialIDs))

	return &AuthenticationOptions{
		Challenge: session.Challenge,
		ExpiresAt: expiresAt,
		Options:   assertion,
	}, nil
}

// CompleteAuthentication consumes expectedChallenge and verifies the assertion
// against the stored authenticator state.
func (c *Coordinator) CompleteAuthentication(
	ctx context.Context,
	response *protocol.ParsedCredentialAssertionData,
	expectedChallenge string,
	authenticator AuthenticatorState,
) (*VerifiedAuthentication, error) {
	if response == nil {
		return nil, ErrInvalidResponse
	}
	if len(authenticator.CredentialID) == 0 || len(authenticator.PublicKey) == 0 {
		return nil, ErrInvalidAuthenticator
	}

	consumed, err := c.consume(ctx, expectedChallenge, challenge.KindAuthentication)
	if err != nil {
		return nil, err
	}

	result, err := c.verifier.VerifyAuthentication(ctx, AuthenticationInput{
		Challenge:     *consumed,
		Response:      response,
		Authenticator: authenticator,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "passkey authentication rejected", "user_id", consumed.UserID, "error", err)
		return nil, err
	}

	if result.CloneWarning {
		c.logger.WarnContext(ctx, "passkey sign counter did not advance", "user_id", result.UserID)
	}
	return result, nil
}

// ClearExpiredChallenges sweeps the challenge store.
func (c *Coordinator) ClearExpiredChallenges(ctx context.Context) (int, error) {
	removed, err := c.store.ClearExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return removed, nil
}

// remember stores value and returns the advertised expiry. The timestamp is taken
// before the write, so clients never see an expiry later than the store's.
func (c *Coordinator) remember(ctx context.Context, value string, kind challenge.Kind, userID string) (time.Time, error) {
	expiresAt := time.Now().Add(c.config.ChallengeTTL)

	var err error
	if ks, ok := c.store.(challenge.KindStore); ok {
		err = ks.StoreKind(ctx, value, kind, userID, c.config.ChallengeTTL)
	} else {
		err = c.store.Store(ctx, value, userID, c.config.ChallengeTTL)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return expiresAt, nil
}

// consume takes value out of the store. When the store records kinds, a challenge
// from the other ceremony is refused before it is consumed.
func (c *Coordinator) consume(ctx context.Context, value string, kind challenge.Kind) (*challenge.Challenge, error) {
	if value == "" {
		return nil, ErrChallengeNotFound
	}

	if _, ok := c.store.(challenge.KindStore); ok {
		pending, err := c.store.Get(ctx, value)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if err := checkKind(pending, kind); err != nil {
			return nil, err
		}
	}

	consumed, err := c.store.Consume(ctx, value)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := checkKind(consumed, kind); err != nil {
		return nil, err
	}
	return consumed, nil
}

func checkKind(ch *challenge.Challenge, want challenge.Kind) error {
	if ch.Kind != challenge.KindUnspecified && ch.Kind != want {
		return fmt.Errorf("%w: challenge was issued for %s", ErrVerificationFailed, ch.Kind)
	}
	return nil
}

func mapStoreError(err error) error {
	if errors.Is(err, challenge.ErrNotFound) {
		return ErrChallengeNotFound
	}
	return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
}
