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

// Signin-specific phases. Idle, completed and failed are shared.
const (
	// PhaseSigningIn is an exported constant or variable used by the flow client.
	PhaseSigningIn Phase = "signing_in"
	// PhaseRequires2FA is an exported constant or variable used by the flow client.
	PhaseRequires2FA Phase = "requires_2fa"
	// PhaseVerifying2FA is an exported constant or variable used by the flow client.
	PhaseVerifying2FA Phase = "verifying_2fa"
)

const (
	signinStepCredentials = 0
	signinStepTwoFactor   = 1

	defaultSigninMessage = "Signin successful!"
)

func signinTable() flows.Table {
	return flows.Table{
		Idle:      PhaseIdle,
		Completed: PhaseCompleted,
		Failed:    PhaseFailed,
		Steps: []flows.Step{
			{Name: "Signin", RunningPhase: PhaseSigningIn, RunningProgress: 30, AwaitingPhase: PhaseRequires2FA, AwaitingProgress: 60},
			{Name: "Two-factor verification", RunningPhase: PhaseVerifying2FA, RunningProgress: 85},
		},
	}
}

// SigninInput defines a public type used by authflow APIs.
//
// SigninInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigninInput struct {
	Email    string
	Username string
	Password string
}

// SigninPayload defines a public type used by authflow APIs.
//
// SigninPayload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigninPayload struct {
	AccountID         string
	AccountName       string
	CompletionMessage string
	SessionToken      string
	TempToken         string
}

type signinPayload struct {
	mu                sync.Mutex
	accountID         string
	accountName       string
	completionMessage string
	sessionToken      string
	tempToken         string
}

func (p *signinPayload) setTempToken(token string) {
	p.mu.Lock()
	p.tempToken = token
	p.mu.Unlock()
}

func (p *signinPayload) complete(accountID, accountName, message, sessionToken string) {
	p.mu.Lock()
	p.accountID = accountID
	p.accountName = accountName
	p.completionMessage = message
	p.sessionToken = sessionToken
	p.tempToken = ""
	p.mu.Unlock()
}

func (p *signinPayload) clear() {
	p.mu.Lock()
	p.accountID = ""
	p.accountName = ""
	p.completionMessage = ""
	p.sessionToken = ""
	p.tempToken = ""
	p.mu.Unlock()
}

// SigninFlow defines a public type used by authflow APIs.
//
// SigninFlow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigninFlow struct {
	flowBase
	payload signinPayload
}

// NewSignin describes the newsignin operation and its observable behavior.
//
// NewSignin may return an error when input validation, dependency calls, or security checks fail.
// NewSignin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) NewSignin() *SigninFlow {
	f := &SigninFlow{}
	f.flowBase = newFlowBase(c, "signin", signinTable())
	return f
}

// Start describes the start operation and its observable behavior.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SigninFlow) Start(ctx context.Context, input SigninInput) Result {
	if issue := validate.First(
		validate.AnyOf("identifier", "Email or username is required", input.Email, input.Username),
		validate.Required("password", "Password", input.Password),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "signin", signinStepCredentials, func(ctx context.Context) (flows.Outcome, error) {
		resp, err := f.c.service.SignIn(ctx, SignInRequest{
			Email:    input.Email,
			Username: input.Username,
			Password: input.Password,
		})
		if err != nil {
			f.c.metricInc(MetricSigninFailure)
			f.c.emitAudit(ctx, auditEventSigninFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}

		if resp.RequiresTwoFactor {
			now := f.c.clock()
			rec := vault.Record{
				Token:       resp.TempToken,
				AccountID:   resp.AccountID,
				AccountName: resp.AccountName,
				IssuedAt:    now.Unix(),
				ExpiresAt:   now.Add(f.c.config.Challenge.TTL).Unix(),
			}
			if err := f.c.vault.Put(ctx, session, rec, f.c.config.Challenge.TTL); err != nil {
				f.c.metricInc(MetricSigninFailure)
				f.c.emitAudit(ctx, auditEventSigninFailure, f.name, session, false, resp.AccountID, err, nil)
				return flows.Outcome{}, ErrVaultUnavailable
			}
			f.c.metricInc(MetricSigninTwoFactorRequired)
			f.c.emitAudit(ctx, auditEventSigninTwoFactorRequired, f.name, session, true, resp.AccountID, nil, nil)
			return flows.Outcome{
				Message: twoFactorRequiredMessage,
				Apply:   func() { f.payload.setTempToken(resp.TempToken) },
			}, nil
		}

		f.c.metricInc(MetricSigninSuccess)
		f.c.emitAudit(ctx, auditEventSigninSuccess, f.name, session, true, resp.AccountID, nil, nil)
		message := resp.Message
		if message == "" {
			message = defaultSigninMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(resp.AccountID, resp.AccountName, message, resp.SessionToken) },
		}, nil
	})
}

// VerifyTwoFactor describes the verifytwofactor operation and its observable behavior.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SigninFlow) VerifyTwoFactor(ctx context.Context, code string) Result {
	// Required, not Code: this field also accepts alphanumeric backup codes.
	if issue := validate.First(
		validate.Required("code", "Verification code", code),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	if res, ok := f.requireChallenge(ctx, session, noTempTokenMessage); !ok {
		return res
	}

	return f.run(ctx, "verify_2fa", signinStepTwoFactor, func(ctx context.Context) (flows.Outcome, error) {
		rec, err := f.c.vault.Get(ctx, session)
		if err != nil {
			if vault.Missing(err) {
				f.c.metricInc(MetricChallengeMiss)
				return flows.Outcome{}, errors.New("temporary token expired")
			}
			return flows.Outcome{}, ErrVaultUnavailable
		}

		resp, err := f.c.service.VerifyTwoFactor(ctx, TwoFactorRequest{Code: code, TempToken: rec.Token})
		if err != nil {
			f.c.metricInc(MetricTwoFactorFailure)
			f.c.emitAudit(ctx, auditEventTwoFactorFailure, f.name, session, false, rec.AccountID, err, nil)
			return flows.Outcome{}, err
		}

		// The token is single use. A failed delete is not a failed
		// signin; the TTL reclaims the record.
		if err := f.c.vault.Delete(ctx, session); err != nil {
			f.c.logger.Debug("challenge record delete failed",
				zap.String("flow", f.name), zap.Error(err))
		}

		accountID := resp.AccountID
		if accountID == "" {
			accountID = rec.AccountID
		}
		accountName := resp.AccountName
		if accountName == "" {
			accountName = rec.AccountName
		}
		f.c.metricInc(MetricTwoFactorSuccess)
		f.c.emitAudit(ctx, auditEventTwoFactorSuccess, f.name, session, true, accountID, nil, nil)

		message := resp.Message
		if message == "" {
			message = defaultSigninMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(accountID, accountName, message, resp.SessionToken) },
		}, nil
	})
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SigninFlow) Reset() {
	f.reset(f.payload.clear)
}

// Payload describes the payload operation and its observable behavior.
//
// Payload may return an error when input validation, dependency calls, or security checks fail.
// Payload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SigninFlow) Payload() SigninPayload {
	f.payload.mu.Lock()
	defer f.payload.mu.Unlock()
	return SigninPayload{
		AccountID:         f.payload.accountID,
		AccountName:       f.payload.accountName,
		CompletionMessage: f.payload.completionMessage,
		SessionToken:      f.payload.sessionToken,
		TempToken:         f.payload.tempToken,
	}
}

// DebugInfo describes the debuginfo operation and its observable behavior.
//
// DebugInfo may return an error when input validation, dependency calls, or security checks fail.
// DebugInfo does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *SigninFlow) DebugInfo() DebugInfo {
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
	// Token values stay out of diagnostics.
	if p.TempToken != "" {
		detail["temp_token"] = "present"
	}
	if p.SessionToken != "" {
		detail["session_token"] = "present"
	}
	return f.debugInfo(detail)
}
