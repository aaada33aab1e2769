package internaldefs

import (
	authflow "github.com/calmreach/authflow"
)

// CounterDef defines a public type used by authflow APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authflow APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the flow client.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricSigninSuccess, Name: "authflow_signin_success_total", Help: "Completed sign-in flows."},
	{ID: authflow.MetricSigninFailure, Name: "authflow_signin_failure_total", Help: "Failed sign-in submissions."},
	{ID: authflow.MetricSigninTwoFactorRequired, Name: "authflow_signin_two_factor_required_total", Help: "Sign-ins parked awaiting a two-factor code."},
	{ID: authflow.MetricTwoFactorSuccess, Name: "authflow_two_factor_success_total", Help: "Successful two-factor verifications."},
	{ID: authflow.MetricTwoFactorFailure, Name: "authflow_two_factor_failure_total", Help: "Failed two-factor verifications."},
	{ID: authflow.MetricSignupSuccess, Name: "authflow_signup_success_total", Help: "Accepted registration submissions."},
	{ID: authflow.MetricSignupFailure, Name: "authflow_signup_failure_total", Help: "Failed registration submissions."},
	{ID: authflow.MetricEmailVerifySuccess, Name: "authflow_email_verify_success_total", Help: "Successful email verifications."},
	{ID: authflow.MetricEmailVerifyFailure, Name: "authflow_email_verify_failure_total", Help: "Failed email verifications."},
	{ID: authflow.MetricProfileCompleteSuccess, Name: "authflow_profile_complete_success_total", Help: "Successful profile completions."},
	{ID: authflow.MetricProfileCompleteFailure, Name: "authflow_profile_complete_failure_total", Help: "Failed profile completions."},
	{ID: authflow.MetricResetRequestSuccess, Name: "authflow_reset_request_success_total", Help: "Password reset emails requested."},
	{ID: authflow.MetricResetRequestFailure, Name: "authflow_reset_request_failure_total", Help: "Failed password reset requests."},
	{ID: authflow.MetricResetConfirmSuccess, Name: "authflow_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: authflow.MetricResetConfirmFailure, Name: "authflow_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: authflow.MetricTOTPSetupRequested, Name: "authflow_totp_setup_requested_total", Help: "Two-factor setup sessions opened."},
	{ID: authflow.MetricTOTPSetupSuccess, Name: "authflow_totp_setup_success_total", Help: "Two-factor setups enabled."},
	{ID: authflow.MetricTOTPSetupFailure, Name: "authflow_totp_setup_failure_total", Help: "Failed two-factor setup confirmations."},
	{ID: authflow.MetricVerificationResent, Name: "authflow_verification_resent_total", Help: "Verification emails resent."},
	{ID: authflow.MetricRetryAttempt, Name: "authflow_retry_attempt_total", Help: "Retries accepted by the retry gate."},
	{ID: authflow.MetricRetryDenied, Name: "authflow_retry_denied_total", Help: "Retries denied by the retry gate."},
	{ID: authflow.MetricValidationRejected, Name: "authflow_validation_rejected_total", Help: "Submissions rejected by local validation."},
	{ID: authflow.MetricBusyRejected, Name: "authflow_busy_rejected_total", Help: "Operations rejected while another was in progress."},
	{ID: authflow.MetricChallengeHit, Name: "authflow_challenge_hit_total", Help: "Vault lookups that found a live challenge token."},
	{ID: authflow.MetricChallengeMiss, Name: "authflow_challenge_miss_total", Help: "Vault lookups whose challenge token was missing or expired."},
}

// HistogramDefs is an exported constant or variable used by the flow client.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricRemoteLatency, Name: "authflow_remote_latency_seconds", Help: "Remote account-service call latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the flow client.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the flow client.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
