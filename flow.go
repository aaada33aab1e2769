package authflow

import (
	"context"
	"errors"

	"github.com/calmreach/authflow/internal/flows"
	"github.com/calmreach/authflow/internal/validate"
	"github.com/calmreach/authflow/internal/vault"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phases shared by every flow table. The in-between phases are
// flow-specific and declared next to their controller.
const (
	// PhaseIdle is an exported constant or variable used by the flow client.
	PhaseIdle Phase = "idle"
	// PhaseCompleted is an exported constant or variable used by the flow client.
	PhaseCompleted Phase = "completed"
	// PhaseFailed is an exported constant or variable used by the flow client.
	PhaseFailed Phase = "failed"
)

// Guidance messages returned while a flow is parked waiting for the
// user's next step, and the rejections for secondary steps invoked with
// no stored challenge.
const (
	twoFactorRequiredMessage    = "Two-factor authentication required. Please enter your verification code."
	verificationCodeSentMessage = "Verification required. Please enter the code sent to your email."
	profileRequiredMessage      = "Email verified. Please complete your profile."
	resetEmailSentMessage       = "Password reset email sent. Please check your inbox."
	totpScanMessage             = "Scan the QR code with your authenticator app, then enter the current code."

	noTempTokenMessage     = "No temporary token found. Please sign in again."
	noPendingSignupMessage = "No pending registration found. Please sign up again."
	noSetupSessionMessage  = "No setup session found. Please restart two-factor setup."
)

// flowBase carries what every flow controller shares: the owning
// client, the flow name used in logs and audit records, the generated
// challenge-vault session key, and the state machine.
type flowBase struct {
	c       *Client
	name    string
	session string
	machine *flows.Machine
}

func newFlowBase(c *Client, name string, table flows.Table) flowBase {
	return flowBase{
		c:       c,
		name:    name,
		session: uuid.NewString(),
		machine: c.newMachine(table),
	}
}

// sessionFor resolves the challenge-vault key for one call: a session
// pinned on the context wins over the controller's generated one, so
// multiple backend instances can drive the same flow.
func (f *flowBase) sessionFor(ctx context.Context) string {
	if s, ok := flowSessionFromContext(ctx); ok {
		return s
	}
	return f.session
}

// Session describes the session operation and its observable behavior.
//
// Session may return an error when input validation, dependency calls, or security checks fail.
// Session does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Session() string {
	return f.session
}

// Phase describes the phase operation and its observable behavior.
//
// Phase may return an error when input validation, dependency calls, or security checks fail.
// Phase does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Phase() Phase {
	return f.machine.Phase()
}

// Loading describes the loading operation and its observable behavior.
//
// Loading may return an error when input validation, dependency calls, or security checks fail.
// Loading does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Loading() bool {
	return f.machine.Loading()
}

// Error describes the error operation and its observable behavior.
//
// Error may return an error when input validation, dependency calls, or security checks fail.
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Error() string {
	return f.machine.Error()
}

// RetryCount describes the retrycount operation and its observable behavior.
//
// RetryCount may return an error when input validation, dependency calls, or security checks fail.
// RetryCount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) RetryCount() int {
	return f.machine.RetryCount()
}

// Progress describes the progress operation and its observable behavior.
//
// Progress may return an error when input validation, dependency calls, or security checks fail.
// Progress does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Progress() int {
	return f.machine.Progress()
}

// CanRetry describes the canretry operation and its observable behavior.
//
// CanRetry may return an error when input validation, dependency calls, or security checks fail.
// CanRetry does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) CanRetry() bool {
	return f.machine.CanRetry()
}

// ClearError describes the clearerror operation and its observable behavior.
//
// ClearError may return an error when input validation, dependency calls, or security checks fail.
// ClearError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) ClearError() {
	f.machine.ClearError()
}

// IsIdle describes the isidle operation and its observable behavior.
//
// IsIdle may return an error when input validation, dependency calls, or security checks fail.
// IsIdle does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) IsIdle() bool {
	return f.machine.Phase() == PhaseIdle
}

// IsCompleted describes the iscompleted operation and its observable behavior.
//
// IsCompleted may return an error when input validation, dependency calls, or security checks fail.
// IsCompleted does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) IsCompleted() bool {
	return f.machine.Phase() == PhaseCompleted
}

// IsFailed describes the isfailed operation and its observable behavior.
//
// IsFailed may return an error when input validation, dependency calls, or security checks fail.
// IsFailed does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) IsFailed() bool {
	return f.machine.Phase() == PhaseFailed
}

// Retry describes the retry operation and its observable behavior.
//
// Retry may return an error when input validation, dependency calls, or security checks fail.
// Retry does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *flowBase) Retry(ctx context.Context) Result {
	res := f.machine.Retry(ctx)
	switch {
	case errors.Is(res.Err, flows.ErrBusy):
		f.c.metricInc(MetricBusyRejected)
		f.c.logger.Debug("retry rejected while busy", zap.String("flow", f.name))
	case errors.Is(res.Err, flows.ErrRetryDenied):
		f.c.metricInc(MetricRetryDenied)
		f.c.emitAudit(ctx, auditEventRetryDenied, f.name, f.sessionFor(ctx), false, "", res.Err, func() map[string]string {
			return map[string]string{"reason": res.Message}
		})
		f.c.logger.Debug("retry denied", zap.String("flow", f.name), zap.String("reason", res.Message))
	default:
		f.c.metricInc(MetricRetryAttempt)
		f.c.emitAudit(ctx, auditEventFlowRetried, f.name, f.sessionFor(ctx), res.Success, "", nil, nil)
		f.afterAction("retry", res)
	}
	return res
}

// run drives one machine step with the ambient concerns attached: the
// latency observation around the remote closure and the settled-state
// logging. The closure the machine stores for Retry is the observed
// one, so retried attempts are measured the same way.
func (f *flowBase) run(ctx context.Context, action string, step int, remote flows.RunFunc) Result {
	res := f.machine.Run(ctx, step, f.observed(remote))
	f.afterAction(action, res)
	return res
}

func (f *flowBase) observed(remote flows.RunFunc) flows.RunFunc {
	return func(ctx context.Context) (flows.Outcome, error) {
		start := f.c.clock()
		out, err := remote(ctx)
		f.c.observeRemote(f.c.clock().Sub(start))
		return out, err
	}
}

func (f *flowBase) afterAction(action string, res Result) {
	switch {
	case errors.Is(res.Err, flows.ErrBusy):
		f.c.metricInc(MetricBusyRejected)
		f.c.logger.Debug("action rejected while busy",
			zap.String("flow", f.name), zap.String("action", action))
	case errors.Is(res.Err, flows.ErrRemote):
		f.c.logger.Error("remote action failed",
			zap.String("flow", f.name), zap.String("action", action), zap.String("message", res.Message))
	case res.Err != nil:
		f.c.logger.Debug("action rejected",
			zap.String("flow", f.name), zap.String("action", action), zap.String("message", res.Message))
	default:
		f.c.logger.Debug("action settled",
			zap.String("flow", f.name), zap.String("action", action),
			zap.String("phase", string(f.machine.Phase())), zap.Bool("success", res.Success))
	}
}

// rejectValidation settles a failed local rule. The busy rejection wins
// while an action is in flight so the stored error never flips under a
// live call.
func (f *flowBase) rejectValidation(ctx context.Context, issue *validate.Issue) Result {
	res := f.machine.RejectValidation(issue.Field, issue.Message)
	if errors.Is(res.Err, flows.ErrBusy) {
		f.c.metricInc(MetricBusyRejected)
		return res
	}
	f.c.metricInc(MetricValidationRejected)
	f.c.emitAudit(ctx, auditEventValidationRejected, f.name, f.sessionFor(ctx), false, "", res.Err, func() map[string]string {
		return map[string]string{"field": issue.Field}
	})
	f.c.logger.Debug("input validation rejected",
		zap.String("flow", f.name), zap.String("field", issue.Field))
	return res
}

// requireChallenge is the no-remote-call precondition of secondary
// steps: with no usable challenge record the step settles to message
// before anything is invoked. A store that cannot answer is not a miss;
// the step proceeds and surfaces the store failure as a normal
// retryable failure.
func (f *flowBase) requireChallenge(ctx context.Context, session, message string) (Result, bool) {
	_, err := f.c.vault.Get(ctx, session)
	switch {
	case err == nil:
		f.c.metricInc(MetricChallengeHit)
		return Result{}, true
	case vault.Missing(err):
		res := f.machine.RejectState(message)
		if errors.Is(res.Err, flows.ErrBusy) {
			f.c.metricInc(MetricBusyRejected)
			return res, false
		}
		f.c.metricInc(MetricChallengeMiss)
		f.c.emitAudit(ctx, auditEventChallengeMiss, f.name, session, false, "", res.Err, nil)
		f.c.logger.Debug("challenge record missing",
			zap.String("flow", f.name), zap.String("session", session))
		return res, false
	default:
		return Result{}, true
	}
}

// reset returns the controller to idle: machine first so any in-flight
// settlement is invalidated, then the typed payload, then the stored
// challenge record. The record delete is best effort; the TTL is the
// backstop.
func (f *flowBase) reset(clearPayload func()) {
	f.machine.Reset()
	if clearPayload != nil {
		clearPayload()
	}
	ctx := context.Background()
	if err := f.c.vault.Delete(ctx, f.session); err != nil {
		f.c.logger.Debug("challenge record delete failed on reset",
			zap.String("flow", f.name), zap.Error(err))
	}
	f.c.emitAudit(ctx, auditEventFlowReset, f.name, f.session, true, "", nil, nil)
}

// debugInfo assembles the shared half of a DebugInfo snapshot.
func (f *flowBase) debugInfo(payload map[string]string) DebugInfo {
	snap := f.machine.Snapshot()
	return DebugInfo{
		Flow:        f.name,
		Session:     f.session,
		Phase:       snap.Phase,
		Loading:     snap.Loading,
		Error:       snap.Error,
		RetryCount:  snap.RetryCount,
		LastAttempt: snap.LastAttempt,
		Progress:    f.machine.Progress(),
		CanRetry:    f.machine.CanRetry(),
		Payload:     payload,
	}
}
