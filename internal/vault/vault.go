package vault

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMiss    = errors.New("challenge record not found")
	ErrExpired = errors.New("challenge record expired")
	ErrBackend = errors.New("challenge store unavailable")
)

// Record is one stored secondary-step token with the account context the
// issuing step learned. ExpiresAt and IssuedAt are Unix seconds.
type Record struct {
	Token       string
	AccountID   string
	AccountName string
	IssuedAt    int64
	ExpiresAt   int64
}

// Vault is the store contract flow controllers depend on. Put overwrites
// any record already held for the session; Get returns ErrMiss or
// ErrExpired for unusable records; Delete is idempotent.
type Vault interface {
	Put(ctx context.Context, session string, rec Record, ttl time.Duration) error
	Get(ctx context.Context, session string) (Record, error)
	Delete(ctx context.Context, session string) error
}

// Missing reports whether err means the record cannot be used, as
// opposed to the backend being unreachable.
func Missing(err error) bool {
	return errors.Is(err, ErrMiss) || errors.Is(err, ErrExpired)
}
