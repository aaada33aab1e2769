package session

import "crypto/sha256"

// HashBinding hashes a client identity value (IP address, user agent)
// for storage in [Session.IPHash] and [Session.UserAgentHash]. Sessions
// store only the digest, never the raw value.
func HashBinding(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// Session defines a public type used by authflow APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SchemaVersion byte

	SessionID   string
	AccountID   string
	AccountName string

	IPHash        [32]byte
	UserAgentHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
