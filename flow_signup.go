package authflow

import (
	"context"
	"errors"
	"sync"

	"github.com/calmreach/authflow/internal/flows"
	"github.com/calmreach/authflow/internal/validate"
	"github.com/calmreach/authflow/internal/vault"
	"go.uber.org/zap"
)

// Signup-specific phases. Idle, completed and failed are shared.
const (
	// PhaseRegistering is an exported constant or variable used by the flow client.
	PhaseRegistering Phase = "registering"
	// PhaseVerificationRequired is an exported constant or variable used by the flow client.
	PhaseVerificationRequired Phase = "verification_required"
	// PhaseVerifyingEmail is an exported constant or variable used by the flow client.
	PhaseVerifyingEmail Phase = "verifying_email"
	// PhaseProfileRequired is an exported constant or variable used by the flow client.
	PhaseProfileRequired Phase = "profile_required"
	// PhaseCompletingProfile is an exported constant or variable used by the flow client.
	PhaseCompletingProfile Phase = "completing_profile"
)

const (
	signupStepRegister    = 0
	signupStepVerifyEmail = 1
	signupStepProfile     = 2

	defaultSignupVerifiedMessage = "Email verified successfully!"
	defaultProfileDoneMessage    = "Welcome! Your account is ready."
)

func signupTable() flows.Table {
	return flows.Table{
		Idle:      PhaseIdle,
		Completed: PhaseCompleted,
		Failed:    PhaseFailed,
		Steps: []flows.Step{
			{Name: "Signup", RunningPhase: PhaseRegistering, RunningProgress: 30, AwaitingPhase: PhaseVerificationRequired, AwaitingProgress: 50},
			{Name: "Email verification", RunningPhase: PhaseVerifyingEmail, RunningProgress: 65, AwaitingPhase: PhaseProfileRequired, AwaitingProgress: 80},
			{Name: "Profile completion", RunningPhase: PhaseCompletingProfile, RunningProgress: 90},
		},
	}
}

// SignupInput defines a public type used by authflow APIs.
//
// SignupInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// SignupPayload defines a public type used by authflow APIs.
//
// SignupPayload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignupPayload struct {
	AccountID         string
	AccountName       string
	CompletionMessage string
	SessionToken      string
	PendingToken      string
}

type signupPayload struct {
	mu                sync.Mutex
	accountID         string
	accountName       string
	completionMessage string
	sessionToken      string
	pendingToken      string
}

func (p *signupPayload) setPendingToken(token string) {
	p.mu.Lock()
	p.pendingToken = token
	p.mu.Unlock()
}

func (p *signupPayload) complete(accountID, accountName, message, sessionToken string) {
	p.mu.Lock()
	p.accountID = accountID
	p.accountName = accountName
	p.completionMessage = message
	p.sessionToken = sessionToken
	p.pendingToken = ""
	p.mu.Unlock()
}

func (p *signupPayload) clear() {
	p.mu.Lock()
	p.accountID = ""
	p.accountName = ""
	p.completionMessage = ""
	p.sessionToken = ""
	p.pendingToken = ""
	p.mu.Unlock()
}

// SignupFlow defines a public type used by authflow APIs.
//
// SignupFlow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignupFlow struct {
	flowBase
	payload signupPayload
}

// NewSignup describes the newsignup operation and its observable behavior.
//
// NewSignup may return an error when input validation, dependency calls, or security checks fail.
// NewSignup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) NewSignup() *SignupFlow {
	f := &SignupFlow{}
	f.flowBase = newFlowBase(c, "signup", signupTable())
	return f
}

// Start describes the start operation and its observable behavior.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) Start(ctx context.Context, input SignupInput) Result {
	if issue := validate.First(
		validate.Required("email", "Email", input.Email),
		validate.Required("password", "Password", input.Password),
		validate.Match("confirm_password", "Passwords must match", input.Password, input.ConfirmPassword),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "register", signupStepRegister, func(ctx context.Context) (flows.Outcome, error) {
		resp, err := f.c.service.Register(ctx, RegisterRequest{
			Email:    input.Email,
			Password: input.Password,
		})
		if err != nil {
			f.c.metricInc(MetricSignupFailure)
			f.c.emitAudit(ctx, auditEventSignupFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}

		if err := f.storePending(ctx, session, resp.PendingToken, resp.AccountID); err != nil {
			f.c.metricInc(MetricSignupFailure)
			f.c.emitAudit(ctx, auditEventSignupFailure, f.name, session, false, resp.AccountID, err, nil)
			return flows.Outcome{}, ErrVaultUnavailable
		}
		f.c.metricInc(MetricSignupSuccess)
		f.c.emitAudit(ctx, auditEventSignupSuccess, f.name, session, true, resp.AccountID, nil, nil)
		return flows.Outcome{
			Message: verificationCodeSentMessage,
			Apply:   func() { f.payload.setPendingToken(resp.PendingToken) },
		}, nil
	})
}

// VerifyEmail describes the verifyemail operation and its observable behavior.
//
// VerifyEmail may return an error when input validation, dependency calls, or security checks fail.
// VerifyEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) VerifyEmail(ctx context.Context, code string) Result {
	if issue := validate.First(
		validate.Code("code", "Verification code", code),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	if res, ok := f.requireChallenge(ctx, session, noPendingSignupMessage); !ok {
		return res
	}

	return f.run(ctx, "verify_email", signupStepVerifyEmail, func(ctx context.Context) (flows.Outcome, error) {
		rec, err := f.c.vault.Get(ctx, session)
		if err != nil {
			if vault.Missing(err) {
				f.c.metricInc(MetricChallengeMiss)
				return flows.Outcome{}, errors.New("pending registration expired")
			}
			return flows.Outcome{}, ErrVaultUnavailable
		}

		resp, err := f.c.service.VerifyEmail(ctx, VerifyEmailRequest{Code: code, PendingToken: rec.Token})
		if err != nil {
			f.c.metricInc(MetricEmailVerifyFailure)
			f.c.emitAudit(ctx, auditEventEmailVerifyFailure, f.name, session, false, rec.AccountID, err, nil)
			return flows.Outcome{}, err
		}

		accountID := resp.AccountID
		if accountID == "" {
			accountID = rec.AccountID
		}
		f.c.metricInc(MetricEmailVerifySuccess)
		f.c.emitAudit(ctx, auditEventEmailVerifySuccess, f.name, session, true, accountID, nil, nil)

		if resp.ProfileRequired {
			// The backend may rotate the pending token for the
			// profile step.
			pending := resp.PendingToken
			if pending == "" {
				pending = rec.Token
			}
			if err := f.storePending(ctx, session, pending, accountID); err != nil {
				return flows.Outcome{}, ErrVaultUnavailable
			}
			return flows.Outcome{
				Message: profileRequiredMessage,
				Apply:   func() { f.payload.setPendingToken(pending) },
			}, nil
		}

		if err := f.c.vault.Delete(ctx, session); err != nil {
			f.c.logger.Debug("challenge record delete failed",
				zap.String("flow", f.name), zap.Error(err))
		}
		message := resp.Message
		if message == "" {
			message = defaultSignupVerifiedMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(accountID, "", message, "") },
		}, nil
	})
}

// CompleteProfile describes the completeprofile operation and its observable behavior.
//
// CompleteProfile may return an error when input validation, dependency calls, or security checks fail.
// CompleteProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) CompleteProfile(ctx context.Context, name string) Result {
	if issue := validate.First(
		validate.Required("name", "Name", name),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	if res, ok := f.requireChallenge(ctx, session, noPendingSignupMessage); !ok {
		return res
	}

	return f.run(ctx, "complete_profile", signupStepProfile, func(ctx context.Context) (flows.Outcome, error) {
		rec, err := f.c.vault.Get(ctx, session)
		if err != nil {
			if vault.Missing(err) {
				f.c.metricInc(MetricChallengeMiss)
				return flows.Outcome{}, errors.New("pending registration expired")
			}
			return flows.Outcome{}, ErrVaultUnavailable
		}

		resp, err := f.c.service.CompleteProfile(ctx, CompleteProfileRequest{Name: name, PendingToken: rec.Token})
		if err != nil {
			f.c.metricInc(MetricProfileCompleteFailure)
			f.c.emitAudit(ctx, auditEventProfileFailure, f.name, session, false, rec.AccountID, err, nil)
			return flows.Outcome{}, err
		}

		if err := f.c.vault.Delete(ctx, session); err != nil {
			f.c.logger.Debug("challenge record delete failed",
				zap.String("flow", f.name), zap.Error(err))
		}

		accountID := resp.AccountID
		if accountID == "" {
			accountID = rec.AccountID
		}
		f.c.metricInc(MetricProfileCompleteSuccess)
		f.c.emitAudit(ctx, auditEventProfileCompleted, f.name, session, true, accountID, nil, nil)

		message := resp.Message
		if message == "" {
			message = defaultProfileDoneMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(accountID, resp.AccountName, message, resp.SessionToken) },
		}, nil
	})
}

func (f *SignupFlow) storePending(ctx context.Context, session, token, accountID string) error {
	now := f.c.clock()
	rec := vault.Record{
		Token:     token,
		AccountID: accountID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(f.c.config.Challenge.TTL).Unix(),
	}
	return f.c.vault.Put(ctx, session, rec, f.c.config.Challenge.TTL)
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) Reset() {
	f.reset(f.payload.clear)
}

// Payload describes the payload operation and its observable behavior.
//
// Payload may return an error when input validation, dependency calls, or security checks fail.
// Payload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) Payload() SignupPayload {
	f.payload.mu.Lock()
	defer f.payload.mu.Unlock()
	return SignupPayload{
		AccountID:         f.payload.accountID,
		AccountName:       f.payload.accountName,
		CompletionMessage: f.payload.completionMessage,
		SessionToken:      f.payload.sessionToken,
		PendingToken:      f.payload.pendingToken,
	}
}

// DebugInfo describes the debuginfo operation and its observable behavior.
//
// DebugInfo may return an error when input validation, dependency calls, or security checks fail.
// DebugInfo does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SignupFlow) DebugInfo() DebugInfo {
	p := f.Payload()
	detail := map[string]string{}
	if p.AccountID != "" {
		detail["account_id"] = p.AccountID
	}
	if p.AccountName != "" {
		detail["account_name"] = p.AccountName
	}
	if p.CompletionMessage != "" {
		detail["completion_message"] = p.CompletionMessage
	}
	if p.PendingToken != "" {
		detail["pending_token"] = "present"
	}
	if p.SessionToken != "" {
		detail["session_token"] = "present"
	}
	return f.debugInfo(detail)
}
