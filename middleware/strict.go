package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/calmreach/authflow/jwt"
	"github.com/calmreach/authflow/session"
)

func RequireStrict(manager *jwt.Manager, store *session.Store, sessionLifetime time.Duration) func(http.Handler) http.Handler {
	return Guard(Strict(manager, store, sessionLifetime))
}

// Strict builds a [SessionVerifier] that checks the token signature and then
// confirms the session still exists in Redis, so sign-out revokes access
// before the token expires. The Redis read renews the sliding TTL.
func Strict(manager *jwt.Manager, store *session.Store, sessionLifetime time.Duration) SessionVerifier {
	return strictVerifier{manager: manager, store: store, lifetime: sessionLifetime}
}

type strictVerifier struct {
	manager  *jwt.Manager
	store    *session.Store
	lifetime time.Duration
}

func (v strictVerifier) VerifySession(ctx context.Context, token string) (Session, error) {
	claims, err := v.manager.ParseSession(token)
	if err != nil {
		return Session{}, err
	}

	// The token carries identity; Redis only answers whether the session
	// is still alive.
	if _, err := v.store.Get(ctx, claims.SessionID, v.lifetime); err != nil {
		return Session{}, err
	}

	return Session{
		AccountID:   claims.AccountID,
		AccountName: claims.AccountName,
		SessionID:   claims.SessionID,
	}, nil
}
