package authflow

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by authflow APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Retry     RetryConfig
	Challenge ChallengeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Remote    RemoteConfig
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig defines a public type used by authflow APIs.
//
// RetryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RetryConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig defines a public type used by authflow APIs.
//
// ChallengeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChallengeConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// AuditConfig defines a public type used by authflow APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authflow APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
REMOTE CONFIG
====================================
*/

// RemoteConfig defines a public type used by authflow APIs.
//
// RemoteConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RemoteConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts: 3,
			Cooldown:    5 * time.Second,
		},
		Challenge: ChallengeConfig{
			RedisPrefix: "afc",
			TTL:         5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Remote: RemoteConfig{
			Timeout:   10 * time.Second,
			UserAgent: "authflow",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Retry
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("Retry MaxAttempts must be > 0")
	}
	if c.Retry.Cooldown < 0 {
		return errors.New("Retry Cooldown must be >= 0")
	}

	// Challenge
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if strings.ContainsAny(c.Challenge.RedisPrefix, " \t\n") {
		return errors.New("Challenge RedisPrefix must not contain whitespace")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	// Remote
	if c.Remote.Timeout <= 0 {
		return errors.New("Remote Timeout must be > 0")
	}
	if c.Remote.BaseURL != "" &&
		!strings.HasPrefix(c.Remote.BaseURL, "http://") &&
		!strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return errors.New("Remote BaseURL must start with http:// or https://")
	}

	return nil
}
