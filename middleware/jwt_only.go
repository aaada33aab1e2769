package middleware

import (
	"context"
	"net/http"

	"github.com/calmreach/authflow/jwt"
)

// RequireJWTOnly returns middleware that verifies bearer tokens with
// signature and claim checks alone, skipping Redis entirely.
//
//	Docs: docs/middleware.md, docs/jwt.md
func RequireJWTOnly(manager *jwt.Manager) func(http.Handler) http.Handler {
	return Guard(JWTOnly(manager))
}

// JWTOnly builds a stateless [SessionVerifier] backed by token parsing alone.
// Sign-out is invisible to this verifier; tokens stay valid until they expire.
func JWTOnly(manager *jwt.Manager) SessionVerifier {
	return jwtOnlyVerifier{manager: manager}
}

type jwtOnlyVerifier struct {
	manager *jwt.Manager
}

func (v jwtOnlyVerifier) VerifySession(_ context.Context, token string) (Session, error) {
	claims, err := v.manager.ParseSession(token)
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccountID:   claims.AccountID,
		AccountName: claims.AccountName,
		SessionID:   claims.SessionID,
	}, nil
}
