package authflow

import (
	"time"

	internalaudit "github.com/calmreach/authflow/internal/audit"
	"github.com/calmreach/authflow/internal/flows"
	"github.com/calmreach/authflow/internal/retry"
	"github.com/calmreach/authflow/internal/vault"
	"go.uber.org/zap"
)

// Client defines a public type used by authflow APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	config  Config
	service AccountService
	vault   vault.Vault
	logger  *zap.Logger
	clock   func() time.Time
	policy  retry.Policy
	audit   *internalaudit.Dispatcher
	metrics *Metrics

	// vaultBackend records which challenge store Build wired: process
	// memory, the client's own Redis codec, or a caller-supplied vault.
	vaultBackend string
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// Metrics describes the metrics operation and its observable behavior.
//
// Metrics may return an error when input validation, dependency calls, or security checks fail.
// Metrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) observeRemote(d time.Duration) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Observe(MetricRemoteLatency, d)
}

func (c *Client) newMachine(table flows.Table) *flows.Machine {
	return flows.NewMachine(flows.Config{
		Table:  table,
		Policy: c.policy,
		Now:    c.clock,
	})
}
