package shieldforge

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shieldforge/jwt"
)

// GenerateToken signs payload with secret using HS256. A zero expiry selects one hour.
//
// GenerateToken does not depend on the configured token secret and works on any Engine.
func (e *Engine) GenerateToken(payload jwt.Payload, secret []byte, expiry time.Duration, opts jwt.SignOptions) (string, error) {
	token, err := jwt.Sign(payload, secret, expiry, opts)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenIssued)
	return token, nil
}

// VerifyToken describes the verifytoken operation and its observable behavior.
//
// VerifyToken checks token against secret and the algorithm allow-list, expiry and
// optional issuer and audience in opts. Every failure matches ErrInvalidToken; the more
// specific jwt sentinels are wrapped for callers that need them.
func (e *Engine) VerifyToken(token string, secret []byte, opts jwt.VerifyOptions) (*jwt.Claims, error) {
	claims, err := jwt.Verify(token, secret, opts)
	e.recordTokenResult(err)
	return claims, err
}

// DecodeToken returns the unverified claims of token, or nil when token is not a JWT.
//
// The result must not be used for authorization decisions.
func (e *Engine) DecodeToken(token string) *jwt.Claims {
	return jwt.Decode(token)
}

// IssueToken signs payload with the configured secret, expiry, issuer and audience.
func (e *Engine) IssueToken(payload jwt.Payload) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrTokenNotConfigured
	}
	return e.IssueTokenWithExpiry(payload, e.jwtManager.Expiry())
}

// IssueTokenWithExpiry is IssueToken with an explicit lifetime.
func (e *Engine) IssueTokenWithExpiry(payload jwt.Payload, expiry time.Duration) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrTokenNotConfigured
	}

	token, err := e.jwtManager.CreateTokenWithExpiry(payload, expiry)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenIssued)
	return token, nil
}

// ValidateToken describes the validatetoken operation and its observable behavior.
//
// ValidateToken verifies token against the configured secrets and claim expectations.
// Rejections are counted, timed and audited as token_rejected events.
// ValidateToken is safe for concurrent use.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrTokenNotConfigured
	}

	var start time.Time
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.jwtManager.ParseToken(token)

	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	e.recordTokenResult(err)

	if err != nil {
		e.emitAudit(ctx, auditEventTokenRejected, false, "", err, nil)
		return nil, err
	}
	return claims, nil
}

func (e *Engine) recordTokenResult(err error) {
	if err == nil {
		e.metricInc(MetricTokenValidated)
		return
	}
	e.metricInc(MetricTokenRejected)
	if errors.Is(err, jwt.ErrAlgorithmNotAllowed) {
		e.metricInc(MetricTokenAlgorithmRejected)
	}
}
