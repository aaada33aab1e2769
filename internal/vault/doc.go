// Package vault stores the short-lived secondary-step tokens one flow
// step issues and a later step consumes: the two-factor temp token from a
// sign-in, the pending token bridging sign-up verification and profile
// completion, the enrollment token of a two-factor setup.
//
// # Design
//
// Records are keyed by flow session and carry their own expiry. Two
// implementations share the contract: Memory for single-process use and
// Redis for deployments where flow steps may land on different instances.
// The Redis form persists a versioned, binary-encoded record with a TTL,
// so a record is unreadable rather than half-read after a format change.
// Records are single-use: consumed on successful verification, deleted on
// reset, expired otherwise.
//
// # What this package must NOT do
//
//   - Decide flow transitions or inspect token contents.
//   - Import authflow or any sibling internal package.
//   - Log token values.
package vault
