//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	authflow "github.com/calmreach/authflow"
	"github.com/calmreach/authflow/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIntegrationStore(t *testing.T) (*session.Store, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, "as", false, false, 0)

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func makeSession(accountID, accountName, sessionID string) *session.Session {
	now := time.Now()

	return &session.Session{
		SchemaVersion: session.CurrentSchemaVersion,
		SessionID:     sessionID,
		AccountID:     accountID,
		AccountName:   accountName,
		IPHash:        identityHash(0x11),
		UserAgentHash: identityHash(0x22),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(time.Hour).Unix(),
	}
}

func identityHash(b byte) [32]byte {
	var out [32]byte
	for i := 0; i < len(out); i++ {
		out[i] = b
	}
	return out
}

// stubAccountService is a minimal in-memory backend for integration tests
// that drive flows through the public client.
type stubAccountService struct {
	twoFactor bool
}

func (s *stubAccountService) SignIn(_ context.Context, _ authflow.SignInRequest) (authflow.SignInResponse, error) {
	if s.twoFactor {
		return authflow.SignInResponse{RequiresTwoFactor: true, TempToken: "tmp-1"}, nil
	}
	return authflow.SignInResponse{AccountID: "acct-1", AccountName: "Stub User"}, nil
}

func (s *stubAccountService) VerifyTwoFactor(_ context.Context, _ authflow.TwoFactorRequest) (authflow.SessionResponse, error) {
	return authflow.SessionResponse{AccountID: "acct-1", AccountName: "Stub User", SessionToken: "sess-1"}, nil
}

func (s *stubAccountService) Register(_ context.Context, _ authflow.RegisterRequest) (authflow.RegisterResponse, error) {
	return authflow.RegisterResponse{PendingToken: "pend-1"}, nil
}

func (s *stubAccountService) VerifyEmail(_ context.Context, _ authflow.VerifyEmailRequest) (authflow.VerifyEmailResponse, error) {
	return authflow.VerifyEmailResponse{ProfileRequired: true, PendingToken: "pend-1"}, nil
}

func (s *stubAccountService) CompleteProfile(_ context.Context, req authflow.CompleteProfileRequest) (authflow.SessionResponse, error) {
	return authflow.SessionResponse{AccountID: "acct-1", AccountName: req.Name}, nil
}

func (s *stubAccountService) ResendVerification(_ context.Context, _ authflow.ResendRequest) (authflow.MessageResponse, error) {
	return authflow.MessageResponse{}, nil
}

func (s *stubAccountService) RequestPasswordReset(_ context.Context, _ authflow.ResetRequest) (authflow.MessageResponse, error) {
	return authflow.MessageResponse{}, nil
}

func (s *stubAccountService) ConfirmPasswordReset(_ context.Context, _ authflow.ResetConfirmRequest) (authflow.MessageResponse, error) {
	return authflow.MessageResponse{}, nil
}

func (s *stubAccountService) BeginTOTPSetup(_ context.Context, _ authflow.TOTPSetupRequest) (authflow.TOTPSetupResponse, error) {
	return authflow.TOTPSetupResponse{SetupToken: "setup-1", Secret: "JBSWY3DPEHPK3PXP"}, nil
}

func (s *stubAccountService) ConfirmTOTPSetup(_ context.Context, _ authflow.TOTPConfirmRequest) (authflow.TOTPBackupResponse, error) {
	return authflow.TOTPBackupResponse{BackupCodes: []string{"1111-2222"}}, nil
}
