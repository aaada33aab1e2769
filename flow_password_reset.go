package authflow

import (
	"context"
	"sync"

	"github.com/calmreach/authflow/internal/flows"
	"github.com/calmreach/authflow/internal/validate"
)

// Password-reset-specific phases. Idle, completed and failed are shared.
const (
	// PhaseResetRequesting is an exported constant or variable used by the flow client.
	PhaseResetRequesting Phase = "requesting"
	// PhaseAwaitingReset is an exported constant or variable used by the flow client.
	PhaseAwaitingReset Phase = "awaiting_reset"
	// PhaseResetting is an exported constant or variable used by the flow client.
	PhaseResetting Phase = "resetting"
)

const (
	resetStepRequest = 0
	resetStepConfirm = 1

	defaultResetDoneMessage = "Password reset successfully. You can now sign in."
)

func passwordResetTable() flows.Table {
	return flows.Table{
		Idle:      PhaseIdle,
		Completed: PhaseCompleted,
		Failed:    PhaseFailed,
		Steps: []flows.Step{
			{Name: "Password reset request", RunningPhase: PhaseResetRequesting, RunningProgress: 30, AwaitingPhase: PhaseAwaitingReset, AwaitingProgress: 60},
			{Name: "Password reset", RunningPhase: PhaseResetting, RunningProgress: 85},
		},
	}
}

// ResetInput defines a public type used by authflow APIs.
//
// ResetInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetInput struct {
	Email string
}

// ResetSubmission defines a public type used by authflow APIs.
//
// ResetSubmission instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetSubmission struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// ResetPayload defines a public type used by authflow APIs.
//
// ResetPayload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetPayload struct {
	Email             string
	CompletionMessage string
}

type resetPayload struct {
	mu                sync.Mutex
	email             string
	completionMessage string
}

func (p *resetPayload) setEmail(email string) {
	p.mu.Lock()
	p.email = email
	p.mu.Unlock()
}

func (p *resetPayload) complete(message string) {
	p.mu.Lock()
	p.completionMessage = message
	p.mu.Unlock()
}

func (p *resetPayload) clear() {
	p.mu.Lock()
	p.email = ""
	p.completionMessage = ""
	p.mu.Unlock()
}

// PasswordResetFlow defines a public type used by authflow APIs.
//
// PasswordResetFlow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetFlow struct {
	flowBase
	payload resetPayload
}

// NewPasswordReset describes the newpasswordreset operation and its observable behavior.
//
// NewPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// NewPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) NewPasswordReset() *PasswordResetFlow {
	f := &PasswordResetFlow{}
	f.flowBase = newFlowBase(c, "password_reset", passwordResetTable())
	return f
}

// Start describes the start operation and its observable behavior.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *PasswordResetFlow) Start(ctx context.Context, input ResetInput) Result {
	if issue := validate.First(
		validate.Required("email", "Email", input.Email),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "request_reset", resetStepRequest, func(ctx context.Context) (flows.Outcome, error) {
		_, err := f.c.service.RequestPasswordReset(ctx, ResetRequest{Email: input.Email})
		if err != nil {
			f.c.metricInc(MetricResetRequestFailure)
			f.c.emitAudit(ctx, auditEventResetRequestFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}
		f.c.metricInc(MetricResetRequestSuccess)
		f.c.emitAudit(ctx, auditEventResetRequested, f.name, session, true, "", nil, nil)
		return flows.Outcome{
			Message: resetEmailSentMessage,
			Apply:   func() { f.payload.setEmail(input.Email) },
		}, nil
	})
}

// Complete describes the complete operation and its observable behavior.
//
// Complete may return an error when input validation, dependency calls, or security checks fail.
// Complete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The reset token arrives out of band (the emailed link), so Complete
// may be called on a fresh controller without a prior Start.
func (f *PasswordResetFlow) Complete(ctx context.Context, submission ResetSubmission) Result {
	if issue := validate.First(
		validate.Required("token", "Reset token", submission.Token),
		validate.Required("new_password", "New password", submission.NewPassword),
		validate.Match("confirm_password", "Passwords must match", submission.NewPassword, submission.ConfirmPassword),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "confirm_reset", resetStepConfirm, func(ctx context.Context) (flows.Outcome, error) {
		resp, err := f.c.service.ConfirmPasswordReset(ctx, ResetConfirmRequest{
			Token:       submission.Token,
			NewPassword: submission.NewPassword,
		})
		if err != nil {
			f.c.metricInc(MetricResetConfirmFailure)
			f.c.emitAudit(ctx, auditEventResetConfirmFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}
		f.c.metricInc(MetricResetConfirmSuccess)
		f.c.emitAudit(ctx, auditEventResetConfirmed, f.name, session, true, "", nil, nil)

		message := resp.Message
		if message == "" {
			message = defaultResetDoneMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(message) },
		}, nil
	})
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *PasswordResetFlow) Reset() {
	f.reset(f.payload.clear)
}

// Payload describes the payload operation and its observable behavior.
//
// Payload may return an error when input validation, dependency calls, or security checks fail.
// Payload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *PasswordResetFlow) Payload() ResetPayload {
	f.payload.mu.Lock()
	defer f.payload.mu.Unlock()
	return ResetPayload{
		Email:             f.payload.email,
		CompletionMessage: f.payload.completionMessage,
	}
}

// DebugInfo describes the debuginfo operation and its observable behavior.
//
// DebugInfo may return an error when input validation, dependency calls, or security checks fail.
// DebugInfo does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *PasswordResetFlow) DebugInfo() DebugInfo {
	p := f.Payload()
	detail := map[string]string{}
	if p.Email != "" {
		detail["email"] = p.Email
	}
	if p.CompletionMessage != "" {
		detail["completion_message"] = p.CompletionMessage
	}
	return f.debugInfo(detail)
}
