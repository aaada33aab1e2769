package authflow

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity defines a public type used by authflow APIs.
//
// LintSeverity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintSeverity int

const (
	// LintInfo is an exported constant or variable used by the flow client.
	LintInfo LintSeverity = iota
	// LintWarn is an exported constant or variable used by the flow client.
	LintWarn
	// LintHigh is an exported constant or variable used by the flow client.
	LintHigh
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning defines a public type used by authflow APIs.
//
// LintWarning instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings defines a public type used by authflow APIs.
//
// LintWarnings instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintWarnings []LintWarning

// Codes describes the codes operation and its observable behavior.
//
// Codes may return an error when input validation, dependency calls, or security checks fail.
// Codes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) Codes() []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity describes the byseverity operation and its observable behavior.
//
// BySeverity may return an error when input validation, dependency calls, or security checks fail.
// BySeverity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError describes the aserror operation and its observable behavior.
//
// AsError may return an error when input validation, dependency calls, or security checks fail.
// AsError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws LintWarnings) AsError(min LintSeverity) error {
	flagged := ws.BySeverity(min)
	if len(flagged) == 0 {
		return nil
	}
	return errors.New("config lint: " + strings.Join(flagged.Codes(), ", "))
}

// Lint describes the lint operation and its observable behavior.
//
// Lint reports settings that are valid but likely misconfigured. It never
// rejects a config; use Validate for hard requirements.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	if strings.HasPrefix(c.Remote.BaseURL, "http://") {
		ws = append(ws, LintWarning{
			Code:     "insecure_base_url",
			Severity: LintHigh,
			Message:  "remote base URL uses plain http; credentials would cross the network unencrypted",
		})
	}
	if c.Retry.MaxAttempts > 10 {
		ws = append(ws, LintWarning{
			Code:     "max_attempts_high",
			Severity: LintWarn,
			Message:  "more than 10 retry attempts lets a stuck client hammer the backend",
		})
	}
	if c.Retry.Cooldown == 0 {
		ws = append(ws, LintWarning{
			Code:     "cooldown_zero",
			Severity: LintInfo,
			Message:  "zero cooldown allows back-to-back retries with no pacing",
		})
	}
	if c.Challenge.TTL > 0 && c.Challenge.TTL < time.Minute {
		ws = append(ws, LintWarning{
			Code:     "challenge_ttl_short",
			Severity: LintWarn,
			Message:  "challenge TTL under a minute may expire before users finish entering a code",
		})
	}
	if c.Challenge.TTL > time.Hour {
		ws = append(ws, LintWarning{
			Code:     "challenge_ttl_long",
			Severity: LintWarn,
			Message:  "challenge TTL over an hour keeps parked credentials-adjacent tokens alive too long",
		})
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		ws = append(ws, LintWarning{
			Code:     "audit_blocking",
			Severity: LintWarn,
			Message:  "with DropIfFull off a stalled audit sink can block flow actions",
		})
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 64 {
		ws = append(ws, LintWarning{
			Code:     "audit_buffer_small",
			Severity: LintInfo,
			Message:  "audit buffers under 64 events drop or block under modest bursts",
		})
	}
	if !c.Audit.Enabled {
		ws = append(ws, LintWarning{
			Code:     "audit_disabled",
			Severity: LintInfo,
			Message:  "audit is off; flow outcomes leave no trail",
		})
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		ws = append(ws, LintWarning{
			Code:     "histograms_without_metrics",
			Severity: LintInfo,
			Message:  "latency histograms have no effect while metrics are disabled",
		})
	}
	if c.Remote.Timeout > 30*time.Second {
		ws = append(ws, LintWarning{
			Code:     "remote_timeout_long",
			Severity: LintInfo,
			Message:  "remote timeouts over 30s leave flows in loading states users will abandon",
		})
	}

	return ws
}
