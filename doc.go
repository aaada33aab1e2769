// Package authflow drives multi-step account flows — sign-in with an
// optional two-factor step, sign-up with email verification and profile
// completion, password reset, email verification, and two-factor
// enrollment — against a remote account service.
//
// Each flow is a small state machine: a phase, a loading flag, a
// human-readable error, and bounded retry bookkeeping. Every action
// returns a [Result]; remote failures are normalized into messages and
// never escape as raw errors. Flow controllers are minted by a [Client]
// built through [Builder.Build].
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Client], [Builder],
// [Config], the [AccountService] contract, and the five flow
// controllers. All internal coordination — the phase machine, retry
// policy, validation rules, challenge vault, audit dispatch, metrics —
// lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of flow actions (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authflow (no import cycles).
//
// # Concurrency contract
//
// A flow controller serializes its own actions: while one remote call is
// outstanding, further actions are rejected with a busy result instead
// of racing. Distinct controllers from the same Client are independent
// and safe to drive from separate goroutines.
package authflow
