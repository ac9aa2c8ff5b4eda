package shieldforge

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/MrEthical07/shieldforge/codes"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset issues a numeric reset code for the account behind identifier and
// returns it for out-of-band delivery. Only the code hash is stored; a new request
// replaces any pending code for the same account.
//
// Unknown and disabled accounts receive a well-formed code that can never be confirmed.
// Every request waits the same randomized delay, so responses do not reveal which
// identifiers exist.
// RequestPasswordReset may return ErrPasswordResetRateLimited or ErrPasswordResetUnavailable.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", ErrPasswordResetDisabled, nil)
		return "", ErrPasswordResetDisabled
	}
	if e.userProvider == nil || e.resetStore == nil || e.resetLimiter == nil {
		return "", ErrEngineNotReady
	}
	if identifier == "" {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", ErrPasswordResetInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_identifier",
			}
		})
		return "", ErrPasswordResetInvalid
	}

	cfg := e.config.PasswordReset
	if err := e.checkResetLimit(ctx, identifier, "password_reset_request", e.resetLimiter.CheckRequest); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", err, nil)
		return "", err
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	// Known and unknown accounts both pay the jitter.
	if sleepErr := sleepPasswordResetEnumerationDelay(ctx); sleepErr != nil {
		return "", sleepErr
	}
	if err != nil || user.Disabled || user.UserID == "" {
		fake, genErr := codes.ResetCode(cfg.CodeLength)
		if genErr != nil {
			return "", ErrPasswordResetUnavailable
		}
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{
				"enumeration_safe": "true",
			}
		})
		e.metricInc(MetricPasswordResetRequest)
		return fake, nil
	}

	code, err := codes.ResetCode(cfg.CodeLength)
	if err != nil {
		e.logger.ErrorContext(ctx, "reset code generation failed", "error", err)
		return "", ErrPasswordResetUnavailable
	}

	record := &passwordResetRecord{
		UserID:    user.UserID,
		CodeHash:  codes.Hash(code),
		ExpiresAt: time.Now().Add(cfg.ResetTTL).Unix(),
	}
	if err := e.resetStore.Save(ctx, user.UserID, record, cfg.ResetTTL); err != nil {
		mapped := mapPasswordResetStoreError(err)
		e.logger.WarnContext(ctx, "reset record not saved", "user_id", user.UserID, "error", err)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.UserID, mapped, nil)
		return "", mapped
	}

	e.metricInc(MetricPasswordResetRequest)
	e.metricInc(MetricResetCodeGenerated)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.UserID, nil, nil)
	return code, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset checks code against the pending reset for identifier in constant
// time and, on a match, stores the hash of newPassword through the UserProvider.
//
// The pending code is deleted on success, on expiry and once MaxAttempts wrong codes
// were presented; the last case returns ErrPasswordResetAttempts. Unknown accounts and
// wrong, expired or used codes all return ErrPasswordResetInvalid. A newPassword that
// violates the length policy returns ErrPasswordPolicy without spending an attempt.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, identifier, code, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrPasswordResetDisabled, nil)
		return ErrPasswordResetDisabled
	}
	if e.userProvider == nil || e.resetStore == nil || e.resetLimiter == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if identifier == "" || code == "" {
		e.failResetConfirm(ctx, "", ErrPasswordResetInvalid, "invalid_input")
		return ErrPasswordResetInvalid
	}

	cfg := e.config.PasswordReset
	if err := e.checkResetLimit(ctx, identifier, "password_reset_confirm", e.resetLimiter.CheckConfirm); err != nil {
		e.failResetConfirm(ctx, "", err, "")
		return err
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil || user.Disabled || user.UserID == "" {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if sleepErr := sleepPasswordResetEnumerationDelay(ctx); sleepErr != nil {
			return sleepErr
		}
		e.failResetConfirm(ctx, "", ErrPasswordResetInvalid, "unknown_account")
		return ErrPasswordResetInvalid
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		mapped := mapPasswordError(err)
		e.failResetConfirm(ctx, user.UserID, mapped, "hash_policy")
		return mapped
	}

	if _, err := e.resetStore.Consume(ctx, user.UserID, code, cfg.MaxAttempts); err != nil {
		mapped := mapPasswordResetStoreError(err)
		if errors.Is(mapped, ErrPasswordResetAttempts) {
			e.metricInc(MetricPasswordResetAttemptsExceeded)
			e.failResetConfirm(ctx, user.UserID, mapped, "attempts_exceeded")
			return mapped
		}
		e.failResetConfirm(ctx, user.UserID, mapped, "")
		return mapped
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		e.logger.ErrorContext(ctx, "password hash update failed", "user_id", user.UserID, "error", err)
		e.failResetConfirm(ctx, user.UserID, err, "update_hash_failed")
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.UserID, nil, nil)
	return nil
}

func (e *Engine) checkResetLimit(
	ctx context.Context,
	identifier, scope string,
	check func(ctx context.Context, identifier, ip string) error,
) error {
	err := check(ctx, identifier, clientIPFromContext(ctx))
	if err == nil {
		return nil
	}

	mapped := mapPasswordResetLimiterError(err)
	if errors.Is(mapped, ErrPasswordResetRateLimited) {
		e.emitRateLimit(ctx, scope, nil)
	} else {
		e.logger.WarnContext(ctx, "reset limiter unavailable", "scope", scope, "error", err)
	}
	return mapped
}

func (e *Engine) failResetConfirm(ctx context.Context, userID string, err error, reason string) {
	e.metricInc(MetricPasswordResetConfirmFailure)

	var metadata func() map[string]string
	if reason != "" {
		metadata = func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		}
	}
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, err, metadata)
}

func mapPasswordResetLimiterError(err error) error {
	switch {
	case errors.Is(err, errResetRateLimited):
		return ErrPasswordResetRateLimited
	default:
		return ErrPasswordResetUnavailable
	}
}

func mapPasswordResetStoreError(err error) error {
	switch {
	case errors.Is(err, errResetCodeMismatch), errors.Is(err, errResetNotFound):
		return ErrPasswordResetInvalid
	case errors.Is(err, errResetAttemptsExceeded):
		return ErrPasswordResetAttempts
	default:
		return ErrPasswordResetUnavailable
	}
}

func sleepPasswordResetEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
