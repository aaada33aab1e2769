// Package session provides Redis-backed persistence and compact binary encoding for the
// live sessions minted when an account flow completes.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format (schema versions v1–v2) with
// forward migration on read. The encoder is append-only: new versions add fields but
// never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// mint or parse session tokens, drive flows, or enforce authentication policy — those
// responsibilities belong to the jwt package and the flow client.
//
// # What this package must NOT do
//
//   - Import authflow, jwt, or middleware (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
