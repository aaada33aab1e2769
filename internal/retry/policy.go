package retry

import (
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultCooldown    = 5 * time.Second
)

// Policy bounds how often a failed flow action may be re-run.
type Policy struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// Decision is the outcome of a single policy check. Reason is a
// display-ready message and is empty when Allowed is true.
type Decision struct {
	Allowed bool
	Reason  string
}

// DefaultPolicy returns the policy used when callers configure nothing.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Cooldown: DefaultCooldown}
}

// Check evaluates the three retry guards in order: a prior failed attempt
// must exist (lastAttempt non-zero), the attempt cap must not be reached,
// and the cooldown since the last attempt must have elapsed. The first
// failing guard wins. Check never mutates anything and is safe to call
// from any goroutine.
func (p Policy) Check(retryCount int, lastAttempt, now time.Time) Decision {
	if lastAttempt.IsZero() {
		return Decision{Reason: "No previous attempt to retry"}
	}
	if retryCount >= p.MaxAttempts {
		return Decision{Reason: fmt.Sprintf("Maximum retry attempts (%d) exceeded", p.MaxAttempts)}
	}
	if elapsed := now.Sub(lastAttempt); elapsed < p.Cooldown {
		return Decision{Reason: fmt.Sprintf("Please wait %d seconds before retrying", ceilSeconds(p.Cooldown-elapsed))}
	}
	return Decision{Allowed: true}
}

// ceilSeconds rounds a remaining duration up to whole seconds so the
// caller never tells a user to wait zero seconds while still blocked.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int(secs)
}
