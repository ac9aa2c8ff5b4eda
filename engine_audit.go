package shieldforge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/shieldforge/jwt"
	"github.com/MrEthical07/shieldforge/passkey"
)

const (
	auditEventTokenRejected         = "token_rejected"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasskeyRegistration   = "passkey_registration"
	auditEventPasskeyAuthentication = "passkey_authentication"
	auditEventChallengeReplay       = "challenge_replay"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
	auditEventPasskeyCloneWarning   = "passkey_clone_warning"
)

// AuditErrorCode is the stable, secret-free error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrAlgorithmNotAllowed AuditErrorCode = "algorithm_not_allowed"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrClaimMismatch       AuditErrorCode = "claim_mismatch"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrResetInvalid        AuditErrorCode = "reset_invalid"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrChallengeNotFound   AuditErrorCode = "challenge_not_found"
	auditErrVerificationFailed  AuditErrorCode = "verification_failed"
	auditErrInvalidRequest      AuditErrorCode = "invalid_request"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, jwt.ErrAlgorithmNotAllowed):
		return auditErrAlgorithmNotAllowed
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return auditErrTokenExpired
	case errors.Is(err, jwt.ErrIssuerMismatch), errors.Is(err, jwt.ErrAudienceMismatch), errors.Is(err, jwt.ErrClaimMissing):
		return auditErrClaimMismatch
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrPasswordResetAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, passkey.ErrVerificationFailed):
		return auditErrVerificationFailed
	case errors.Is(err, passkey.ErrInvalidUser),
		errors.Is(err, passkey.ErrInvalidResponse),
		errors.Is(err, passkey.ErrInvalidAuthenticator):
		return auditErrInvalidRequest
	case errors.Is(err, ErrPasswordResetUnavailable),
		errors.Is(err, passkey.ErrChallengeUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
