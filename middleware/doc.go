// Package middleware exposes HTTP middleware adapters for stateless and strict
// bearer-token enforcement built on top of session verification.
//
// # Guards
//
//   - [Guard] — wraps any [SessionVerifier].
//   - [RequireJWTOnly] — stateless token verification, no Redis call.
//   - [RequireStrict] — token verification plus a live-session check in Redis.
//
// Each guard reads the Authorization header, verifies the bearer token, and
// injects the resolved [Session] into the request context for
// [SessionFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into verifier calls. [Guard] itself
// performs no I/O and holds no policy; the configured [SessionVerifier] owns
// token parsing and any Redis access.
//
// # What this package must NOT do
//
//   - Parse or create JWTs inside [Guard] (verifiers own token handling).
//   - Make authorization decisions beyond pass/reject from VerifySession.
//   - Leak verifier error details to HTTP clients (always a generic 401).
package middleware
