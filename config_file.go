package authflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Durations are strings in
// time.ParseDuration syntax so files can say "5s" or "10m".
type fileConfig struct {
	Retry struct {
		MaxAttempts *int   `yaml:"max_attempts"`
		Cooldown    string `yaml:"cooldown"`
	} `yaml:"retry"`
	Challenge struct {
		RedisPrefix string `yaml:"redis_prefix"`
		TTL         string `yaml:"ttl"`
	} `yaml:"challenge"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize *int  `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled                 *bool `yaml:"enabled"`
		EnableLatencyHistograms *bool `yaml:"enable_latency_histograms"`
	} `yaml:"metrics"`
	Remote struct {
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"remote"`
}

// LoadConfig describes the loadconfig operation and its observable behavior.
//
// LoadConfig may return an error when input validation, dependency calls, or security checks fail.
// LoadConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := fc.apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Retry.MaxAttempts != nil {
		cfg.Retry.MaxAttempts = *fc.Retry.MaxAttempts
	}
	if err := setDuration(&cfg.Retry.Cooldown, fc.Retry.Cooldown, "retry.cooldown"); err != nil {
		return err
	}
	if fc.Challenge.RedisPrefix != "" {
		cfg.Challenge.RedisPrefix = fc.Challenge.RedisPrefix
	}
	if err := setDuration(&cfg.Challenge.TTL, fc.Challenge.TTL, "challenge.ttl"); err != nil {
		return err
	}
	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize != nil {
		cfg.Audit.BufferSize = *fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.EnableLatencyHistograms != nil {
		cfg.Metrics.EnableLatencyHistograms = *fc.Metrics.EnableLatencyHistograms
	}
	if fc.Remote.BaseURL != "" {
		cfg.Remote.BaseURL = fc.Remote.BaseURL
	}
	if err := setDuration(&cfg.Remote.Timeout, fc.Remote.Timeout, "remote.timeout"); err != nil {
		return err
	}
	if fc.Remote.UserAgent != "" {
		cfg.Remote.UserAgent = fc.Remote.UserAgent
	}
	return nil
}

func setDuration(dst *time.Duration, raw, key string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
