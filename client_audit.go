package authflow

import (
	"context"
	"errors"

	"github.com/calmreach/authflow/internal/vault"
)

const (
	auditEventSigninSuccess           = "signin_success"
	auditEventSigninFailure           = "signin_failure"
	auditEventSigninTwoFactorRequired = "signin_2fa_required"
	auditEventTwoFactorSuccess        = "2fa_success"
	auditEventTwoFactorFailure        = "2fa_failure"
	auditEventSignupSuccess           = "signup_success"
	auditEventSignupFailure           = "signup_failure"
	auditEventEmailVerifySuccess      = "email_verification_success"
	auditEventEmailVerifyFailure      = "email_verification_failure"
	auditEventProfileCompleted        = "profile_completed"
	auditEventProfileFailure          = "profile_completion_failure"
	auditEventResetRequested          = "password_reset_requested"
	auditEventResetRequestFailure     = "password_reset_request_failure"
	auditEventResetConfirmed          = "password_reset_confirmed"
	auditEventResetConfirmFailure     = "password_reset_confirm_failure"
	auditEventTOTPSetupRequested      = "totp_setup_requested"
	auditEventTOTPSetupFailure        = "totp_setup_failure"
	auditEventTOTPEnabled             = "totp_enabled"
	auditEventTOTPConfirmFailure      = "totp_confirm_failure"
	auditEventVerificationResent      = "verification_resent"
	auditEventFlowRetried             = "flow_retried"
	auditEventRetryDenied             = "retry_denied"
	auditEventValidationRejected      = "validation_rejected"
	auditEventChallengeMiss           = "challenge_miss"
	auditEventFlowReset               = "flow_reset"
)

// AuditErrorCode defines a public type used by authflow APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrBusy        AuditErrorCode = "operation_in_progress"
	auditErrValidation  AuditErrorCode = "validation_failed"
	auditErrFlowState   AuditErrorCode = "invalid_flow_state"
	auditErrRetryDenied AuditErrorCode = "retry_denied"
	auditErrChallenge   AuditErrorCode = "challenge_unavailable"
	auditErrRemote      AuditErrorCode = "remote_failed"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	flow string,
	session string,
	success bool,
	accountID string,
	err error,
	detailBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var detail map[string]string
	if detailBuilder != nil {
		detail = detailBuilder()
	}

	event := AuditEvent{
		Timestamp: c.clock().UTC(),
		EventType: eventType,
		Flow:      flow,
		Session:   session,
		AccountID: accountID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Detail:    detail,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

// auditErrorCode collapses an action error into the coarse code audit
// records carry. Anything unrecognized came out of a remote round-trip,
// so that is the fallback.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBusy):
		return auditErrBusy
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrFlowState):
		return auditErrFlowState
	case errors.Is(err, ErrRetryDenied):
		return auditErrRetryDenied
	case errors.Is(err, ErrVaultUnavailable), errors.Is(err, vault.ErrBackend):
		return auditErrChallenge
	default:
		return auditErrRemote
	}
}
