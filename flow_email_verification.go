package authflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/calmreach/authflow/internal/flows"
	"github.com/calmreach/authflow/internal/validate"
	"go.uber.org/zap"
)

// PhaseVerifying is an exported constant or variable used by the flow client.
const PhaseVerifying Phase = "verifying"

const (
	emailVerifyStepToken = 0

	defaultEmailVerifiedMessage = "Email verified successfully!"
	defaultResendMessage        = "Verification email sent."
)

func emailVerificationTable() flows.Table {
	return flows.Table{
		Idle:      PhaseIdle,
		Completed: PhaseCompleted,
		Failed:    PhaseFailed,
		Steps: []flows.Step{
			{Name: "Email verification", RunningPhase: PhaseVerifying, RunningProgress: 30},
		},
	}
}

// EmailVerificationPayload defines a public type used by authflow APIs.
//
// EmailVerificationPayload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationPayload struct {
	AccountID         string
	CompletionMessage string
}

type emailVerificationPayload struct {
	mu                sync.Mutex
	accountID         string
	completionMessage string
}

func (p *emailVerificationPayload) complete(accountID, message string) {
	p.mu.Lock()
	p.accountID = accountID
	p.completionMessage = message
	p.mu.Unlock()
}

func (p *emailVerificationPayload) clear() {
	p.mu.Lock()
	p.accountID = ""
	p.completionMessage = ""
	p.mu.Unlock()
}

// EmailVerificationFlow defines a public type used by authflow APIs.
//
// EmailVerificationFlow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationFlow struct {
	flowBase
	payload emailVerificationPayload
}

// NewEmailVerification describes the newemailverification operation and its observable behavior.
//
// NewEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// NewEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) NewEmailVerification() *EmailVerificationFlow {
	f := &EmailVerificationFlow{}
	f.flowBase = newFlowBase(c, "email_verification", emailVerificationTable())
	return f
}

// Start describes the start operation and its observable behavior.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *EmailVerificationFlow) Start(ctx context.Context, token string) Result {
	if issue := validate.First(
		validate.Required("token", "Verification token", token),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "verify_email", emailVerifyStepToken, func(ctx context.Context) (flows.Outcome, error) {
		resp, err := f.c.service.VerifyEmail(ctx, VerifyEmailRequest{Token: token})
		if err != nil {
			f.c.metricInc(MetricEmailVerifyFailure)
			f.c.emitAudit(ctx, auditEventEmailVerifyFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}
		f.c.metricInc(MetricEmailVerifySuccess)
		f.c.emitAudit(ctx, auditEventEmailVerifySuccess, f.name, session, true, resp.AccountID, nil, nil)

		message := resp.Message
		if message == "" {
			message = defaultEmailVerifiedMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(resp.AccountID, message) },
		}, nil
	})
}

// Resend describes the resend operation and its observable behavior.
//
// Resend may return an error when input validation, dependency calls, or security checks fail.
// Resend does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Resend never transitions the machine: the flow stays in whatever
// phase it is in, so a user can request another email while the page
// still shows the failed or idle state.
func (f *EmailVerificationFlow) Resend(ctx context.Context, email string) Result {
	if issue := validate.First(
		validate.Required("email", "Email", email),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	start := f.c.clock()
	resp, err := f.c.service.ResendVerification(ctx, ResendRequest{Email: email})
	f.c.observeRemote(f.c.clock().Sub(start))
	if err != nil {
		f.c.emitAudit(ctx, auditEventVerificationResent, f.name, f.sessionFor(ctx), false, "", err, nil)
		f.c.logger.Error("remote action failed",
			zap.String("flow", f.name), zap.String("action", "resend"), zap.Error(err))
		return Result{
			Message: "Resend verification failed: " + err.Error(),
			Err:     fmt.Errorf("%w: %v", ErrRemote, err),
		}
	}

	f.c.metricInc(MetricVerificationResent)
	f.c.emitAudit(ctx, auditEventVerificationResent, f.name, f.sessionFor(ctx), true, "", nil, nil)
	message := resp.Message
	if message == "" {
		message = defaultResendMessage
	}
	return Result{Success: true, Message: message}
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *EmailVerificationFlow) Reset() {
	f.reset(f.payload.clear)
}

// Payload describes the payload operation and its observable behavior.
//
// Payload may return an error when input validation, dependency calls, or security checks fail.
// Payload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *EmailVerificationFlow) Payload() EmailVerificationPayload {
	f.payload.mu.Lock()
	defer f.payload.mu.Unlock()
	return EmailVerificationPayload{
		AccountID:         f.payload.accountID,
		CompletionMessage: f.payload.completionMessage,
	}
}

// DebugInfo describes the debuginfo operation and its observable behavior.
//
// DebugInfo may return an error when input validation, dependency calls, or security checks fail.
// DebugInfo does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *EmailVerificationFlow) DebugInfo() DebugInfo {
	p := f.Payload()
	detail := map[string]string{}
	if p.AccountID != "" {
		detail["account_id"] = p.AccountID
	}
	if p.CompletionMessage != "" {
		detail["completion_message"] = p.CompletionMessage
	}
	return f.debugInfo(detail)
}
