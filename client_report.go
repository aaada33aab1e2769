package authflow

import "time"

const (
	vaultBackendMemory = "memory"
	vaultBackendRedis  = "redis"
	vaultBackendCustom = "custom"
)

// PostureReport defines a public type used by authflow APIs.
//
// PostureReport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PostureReport struct {
	RetryMaxAttempts        int
	RetryCooldown           time.Duration
	ChallengeTTL            time.Duration
	ChallengeBackend        string
	ChallengeShared         bool
	AuditActive             bool
	AuditDropIfFull         bool
	AuditBufferSize         int
	MetricsActive           bool
	LatencyHistogramsActive bool
	RemoteTimeout           time.Duration
}

// PostureReport describes the posturereport operation and its observable behavior.
//
// PostureReport reflects the configuration the client was built with, not
// live state; log it once at startup. Safe on a nil receiver.
// ChallengeShared is true only for the built-in Redis vault; a custom
// vault's storage is opaque to the client.
func (c *Client) PostureReport() PostureReport {
	if c == nil {
		return PostureReport{}
	}

	return PostureReport{
		RetryMaxAttempts:        c.config.Retry.MaxAttempts,
		RetryCooldown:           c.config.Retry.Cooldown,
		ChallengeTTL:            c.config.Challenge.TTL,
		ChallengeBackend:        c.vaultBackend,
		ChallengeShared:         c.vaultBackend == vaultBackendRedis,
		AuditActive:             c.config.Audit.Enabled,
		AuditDropIfFull:         c.config.Audit.DropIfFull,
		AuditBufferSize:         c.config.Audit.BufferSize,
		MetricsActive:           c.config.Metrics.Enabled,
		LatencyHistogramsActive: c.config.Metrics.Enabled && c.config.Metrics.EnableLatencyHistograms,
		RemoteTimeout:           c.config.Remote.Timeout,
	}
}
