// Package rate provides Redis-backed fixed-window attempt counters used
// to throttle repeated flow attempts per identifier and per client IP.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - fa:  — attempts per identifier
//   - fai: — attempts per IP
//
// # What this package must NOT do
//
//   - Decide retry policy for flow controllers (that lives in internal/retry).
//   - Be imported outside the authflow module.
package rate
