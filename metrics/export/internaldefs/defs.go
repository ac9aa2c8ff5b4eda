package internaldefs

import (
	"github.com/MrEthical07/shieldforge"
)

// CounterDef binds an Engine counter to its exported name.
type CounterDef struct {
	ID   shieldforge.MetricID
	Name string
	Help string
}

// HistogramDef binds an Engine histogram to its exported name.
type HistogramDef struct {
	ID   shieldforge.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for AuditDropped.
const AuditDroppedName = "shieldforge_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: shieldforge.MetricTokenIssued, Name: "shieldforge_token_issued_total", Help: "Signed session tokens."},
	{ID: shieldforge.MetricTokenValidated, Name: "shieldforge_token_validated_total", Help: "Accepted session tokens."},
	{ID: shieldforge.MetricTokenRejected, Name: "shieldforge_token_rejected_total", Help: "Rejected session tokens."},
	{ID: shieldforge.MetricTokenAlgorithmRejected, Name: "shieldforge_token_algorithm_rejected_total", Help: "Tokens rejected for an algorithm outside the allow-list."},
	{ID: shieldforge.MetricResetCodeGenerated, Name: "shieldforge_reset_code_generated_total", Help: "Generated reset codes."},
	{ID: shieldforge.MetricResetCodeVerifyFailure, Name: "shieldforge_reset_code_verify_failure_total", Help: "Reset code verification mismatches."},
	{ID: shieldforge.MetricPasswordHashed, Name: "shieldforge_password_hashed_total", Help: "Password hashes produced."},
	{ID: shieldforge.MetricPasswordVerifySuccess, Name: "shieldforge_password_verify_success_total", Help: "Matching password verifications."},
	{ID: shieldforge.MetricPasswordVerifyFailure, Name: "shieldforge_password_verify_failure_total", Help: "Failed password verifications."},
	{ID: shieldforge.MetricPasswordResetRequest, Name: "shieldforge_password_reset_request_total", Help: "Password reset requests."},
	{ID: shieldforge.MetricPasswordResetConfirmSuccess, Name: "shieldforge_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: shieldforge.MetricPasswordResetConfirmFailure, Name: "shieldforge_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: shieldforge.MetricPasswordResetAttemptsExceeded, Name: "shieldforge_password_reset_attempts_exceeded_total", Help: "Reset codes invalidated by the attempt cap."},
	{ID: shieldforge.MetricRateLimitHit, Name: "shieldforge_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: shieldforge.MetricPasskeyRegistrationStarted, Name: "shieldforge_passkey_registration_started_total", Help: "Started passkey registrations."},
	{ID: shieldforge.MetricPasskeyRegistrationSuccess, Name: "shieldforge_passkey_registration_success_total", Help: "Verified passkey attestations."},
	{ID: shieldforge.MetricPasskeyRegistrationFailure, Name: "shieldforge_passkey_registration_failure_total", Help: "Rejected passkey attestations."},
	{ID: shieldforge.MetricPasskeyAuthenticationStarted, Name: "shieldforge_passkey_authentication_started_total", Help: "Started passkey authentications."},
	{ID: shieldforge.MetricPasskeyAuthenticationSuccess, Name: "shieldforge_passkey_authentication_success_total", Help: "Verified passkey assertions."},
	{ID: shieldforge.MetricPasskeyAuthenticationFailure, Name: "shieldforge_passkey_authentication_failure_total", Help: "Rejected passkey assertions."},
	{ID: shieldforge.MetricPasskeyCloneWarning, Name: "shieldforge_passkey_clone_warning_total", Help: "Assertions whose sign counter did not advance."},
	{ID: shieldforge.MetricChallengeReplay, Name: "shieldforge_challenge_replay_total", Help: "Completions with an unknown, expired or used challenge."},
	{ID: shieldforge.MetricChallengesSwept, Name: "shieldforge_challenges_swept_total", Help: "Expired challenges removed by sweeps."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: shieldforge.MetricValidateLatency, Name: "shieldforge_validate_latency_seconds", Help: "ValidateToken latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, without +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
