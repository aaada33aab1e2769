// Package retry implements the attempt-cap and cooldown policy that gates
// re-running a failed flow action.
//
// # Design
//
// Policy.Check is a pure function of (retryCount, lastAttempt, now). It owns
// every denial reason, including "no previous attempt": a zero lastAttempt
// means no remote failure has been recorded, so there is nothing to retry.
// Callers pass the clock in; the package never reads time.Now itself.
//
// # What this package must NOT do
//
//   - Mutate caller state or count attempts (the flow machine owns counters).
//   - Import authflow or any sibling internal package.
package retry
