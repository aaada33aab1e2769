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

// TOTP-setup-specific phases. Idle, completed and failed are shared.
const (
	// PhaseRequestingSetup is an exported constant or variable used by the flow client.
	PhaseRequestingSetup Phase = "requesting_setup"
	// PhaseAwaitingVerification is an exported constant or variable used by the flow client.
	PhaseAwaitingVerification Phase = "awaiting_verification"
	// PhaseVerifyingCode is an exported constant or variable used by the flow client.
	PhaseVerifyingCode Phase = "verifying_code"
)

const (
	totpStepBegin   = 0
	totpStepConfirm = 1

	defaultTOTPEnabledMessage = "Two-factor authentication enabled."
)

func totpSetupTable() flows.Table {
	return flows.Table{
		Idle:      PhaseIdle,
		Completed: PhaseCompleted,
		Failed:    PhaseFailed,
		Steps: []flows.Step{
			{Name: "Two-factor setup", RunningPhase: PhaseRequestingSetup, RunningProgress: 30, AwaitingPhase: PhaseAwaitingVerification, AwaitingProgress: 60},
			{Name: "Two-factor confirmation", RunningPhase: PhaseVerifyingCode, RunningProgress: 85},
		},
	}
}

// TOTPSetupPayload defines a public type used by authflow APIs.
//
// TOTPSetupPayload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Secret and OTPAuthURL are populated while the flow awaits the first
// code and cleared once setup completes; BackupCodes are populated only
// on completion.
type TOTPSetupPayload struct {
	Secret            string
	OTPAuthURL        string
	BackupCodes       []string
	CompletionMessage string
}

type totpPayload struct {
	mu                sync.Mutex
	secret            string
	otpauthURL        string
	backupCodes       []string
	completionMessage string
}

func (p *totpPayload) setSecret(secret, otpauthURL string) {
	p.mu.Lock()
	p.secret = secret
	p.otpauthURL = otpauthURL
	p.mu.Unlock()
}

func (p *totpPayload) complete(backupCodes []string, message string) {
	p.mu.Lock()
	p.secret = ""
	p.otpauthURL = ""
	p.backupCodes = append([]string(nil), backupCodes...)
	p.completionMessage = message
	p.mu.Unlock()
}

func (p *totpPayload) clear() {
	p.mu.Lock()
	p.secret = ""
	p.otpauthURL = ""
	p.backupCodes = nil
	p.completionMessage = ""
	p.mu.Unlock()
}

// TOTPSetupFlow defines a public type used by authflow APIs.
//
// TOTPSetupFlow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPSetupFlow struct {
	flowBase
	payload totpPayload
}

// NewTOTPSetup describes the newtotpsetup operation and its observable behavior.
//
// NewTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// NewTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) NewTOTPSetup() *TOTPSetupFlow {
	f := &TOTPSetupFlow{}
	f.flowBase = newFlowBase(c, "totp_setup", totpSetupTable())
	return f
}

// Begin describes the begin operation and its observable behavior.
//
// Begin may return an error when input validation, dependency calls, or security checks fail.
// Begin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *TOTPSetupFlow) Begin(ctx context.Context, password string) Result {
	if issue := validate.First(
		validate.Required("password", "Password", password),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	return f.run(ctx, "begin_setup", totpStepBegin, func(ctx context.Context) (flows.Outcome, error) {
		resp, err := f.c.service.BeginTOTPSetup(ctx, TOTPSetupRequest{Password: password})
		if err != nil {
			f.c.metricInc(MetricTOTPSetupFailure)
			f.c.emitAudit(ctx, auditEventTOTPSetupFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}

		now := f.c.clock()
		rec := vault.Record{
			Token:     resp.SetupToken,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(f.c.config.Challenge.TTL).Unix(),
		}
		if err := f.c.vault.Put(ctx, session, rec, f.c.config.Challenge.TTL); err != nil {
			f.c.metricInc(MetricTOTPSetupFailure)
			f.c.emitAudit(ctx, auditEventTOTPSetupFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, ErrVaultUnavailable
		}
		f.c.metricInc(MetricTOTPSetupRequested)
		f.c.emitAudit(ctx, auditEventTOTPSetupRequested, f.name, session, true, "", nil, nil)
		return flows.Outcome{
			Message: totpScanMessage,
			Apply:   func() { f.payload.setSecret(resp.Secret, resp.OTPAuthURL) },
		}, nil
	})
}

// Confirm describes the confirm operation and its observable behavior.
//
// Confirm may return an error when input validation, dependency calls, or security checks fail.
// Confirm does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *TOTPSetupFlow) Confirm(ctx context.Context, code string) Result {
	if issue := validate.First(
		validate.Code("code", "Verification code", code),
	); issue != nil {
		return f.rejectValidation(ctx, issue)
	}

	session := f.sessionFor(ctx)
	if res, ok := f.requireChallenge(ctx, session, noSetupSessionMessage); !ok {
		return res
	}

	return f.run(ctx, "confirm_setup", totpStepConfirm, func(ctx context.Context) (flows.Outcome, error) {
		rec, err := f.c.vault.Get(ctx, session)
		if err != nil {
			if vault.Missing(err) {
				f.c.metricInc(MetricChallengeMiss)
				return flows.Outcome{}, errors.New("setup session expired")
			}
			return flows.Outcome{}, ErrVaultUnavailable
		}

		resp, err := f.c.service.ConfirmTOTPSetup(ctx, TOTPConfirmRequest{Code: code, SetupToken: rec.Token})
		if err != nil {
			f.c.metricInc(MetricTOTPSetupFailure)
			f.c.emitAudit(ctx, auditEventTOTPConfirmFailure, f.name, session, false, "", err, nil)
			return flows.Outcome{}, err
		}

		if err := f.c.vault.Delete(ctx, session); err != nil {
			f.c.logger.Debug("challenge record delete failed",
				zap.String("flow", f.name), zap.Error(err))
		}
		f.c.metricInc(MetricTOTPSetupSuccess)
		f.c.emitAudit(ctx, auditEventTOTPEnabled, f.name, session, true, "", nil, nil)

		message := resp.Message
		if message == "" {
			message = defaultTOTPEnabledMessage
		}
		return flows.Outcome{
			Done:    true,
			Message: message,
			Apply:   func() { f.payload.complete(resp.BackupCodes, message) },
		}, nil
	})
}

// Reset describes the reset operation and its observable behavior.
//
// Reset may return an error when input validation, dependency calls, or security checks fail.
// Reset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *TOTPSetupFlow) Reset() {
	f.reset(f.payload.clear)
}

// Payload describes the payload operation and its observable behavior.
//
// Payload may return an error when input validation, dependency calls, or security checks fail.
// Payload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *TOTPSetupFlow) Payload() TOTPSetupPayload {
	f.payload.mu.Lock()
	defer f.payload.mu.Unlock()
	return TOTPSetupPayload{
		Secret:            f.payload.secret,
		OTPAuthURL:        f.payload.otpauthURL,
		BackupCodes:       append([]string(nil), f.payload.backupCodes...),
		CompletionMessage: f.payload.completionMessage,
	}
}

// DebugInfo describes the debuginfo operation and its observable behavior.
//
// DebugInfo may return an error when input validation, dependency calls, or security checks fail.
// DebugInfo does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *TOTPSetupFlow) DebugInfo() DebugInfo {
	p := f.Payload()
	detail := map[string]string{}
	// The secret itself stays out of diagnostics.
	if p.Secret != "" {
		detail["secret"] = "present"
	}
	if len(p.BackupCodes) > 0 {
		detail["backup_codes"] = "present"
	}
	if p.CompletionMessage != "" {
		detail["completion_message"] = p.CompletionMessage
	}
	return f.debugInfo(detail)
}
