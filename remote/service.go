package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	authflow "github.com/calmreach/authflow"
)

// maxResponseBytes caps how much of a response body is read. Account
// service replies are small; anything larger is a misbehaving backend.
const maxResponseBytes = 1 << 20

// Service defines a public type used by authflow APIs.
//
// Service instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Service struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        *zap.Logger
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg authflow.RemoteConfig, httpClient *http.Client, log *zap.Logger) (*Service, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("remote BaseURL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, errors.New("remote BaseURL must start with http:// or https://")
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "authflow"
	}

	return &Service{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  userAgent,
		log:        log,
	}, nil
}

// SignIn describes the signin operation and its observable behavior.
//
// SignIn may return an error when input validation, dependency calls, or security checks fail.
// SignIn does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) SignIn(ctx context.Context, req authflow.SignInRequest) (authflow.SignInResponse, error) {
	var resp authflow.SignInResponse
	if err := s.post(ctx, "/auth/signin", req, &resp); err != nil {
		return authflow.SignInResponse{}, err
	}
	return resp, nil
}

// VerifyTwoFactor describes the verifytwofactor operation and its observable behavior.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyTwoFactor(ctx context.Context, req authflow.TwoFactorRequest) (authflow.SessionResponse, error) {
	var resp authflow.SessionResponse
	if err := s.post(ctx, "/auth/signin/2fa", req, &resp); err != nil {
		return authflow.SessionResponse{}, err
	}
	return resp, nil
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Register(ctx context.Context, req authflow.RegisterRequest) (authflow.RegisterResponse, error) {
	var resp authflow.RegisterResponse
	if err := s.post(ctx, "/auth/signup", req, &resp); err != nil {
		return authflow.RegisterResponse{}, err
	}
	return resp, nil
}

// VerifyEmail describes the verifyemail operation and its observable behavior.
//
// VerifyEmail may return an error when input validation, dependency calls, or security checks fail.
// VerifyEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyEmail(ctx context.Context, req authflow.VerifyEmailRequest) (authflow.VerifyEmailResponse, error) {
	var resp authflow.VerifyEmailResponse
	if err := s.post(ctx, "/auth/verify-email", req, &resp); err != nil {
		return authflow.VerifyEmailResponse{}, err
	}
	return resp, nil
}

// CompleteProfile describes the completeprofile operation and its observable behavior.
//
// CompleteProfile may return an error when input validation, dependency calls, or security checks fail.
// CompleteProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) CompleteProfile(ctx context.Context, req authflow.CompleteProfileRequest) (authflow.SessionResponse, error) {
	var resp authflow.SessionResponse
	if err := s.post(ctx, "/auth/signup/profile", req, &resp); err != nil {
		return authflow.SessionResponse{}, err
	}
	return resp, nil
}

// ResendVerification describes the resendverification operation and its observable behavior.
//
// ResendVerification may return an error when input validation, dependency calls, or security checks fail.
// ResendVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ResendVerification(ctx context.Context, req authflow.ResendRequest) (authflow.MessageResponse, error) {
	var resp authflow.MessageResponse
	if err := s.post(ctx, "/auth/verify-email/resend", req, &resp); err != nil {
		return authflow.MessageResponse{}, err
	}
	return resp, nil
}

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestPasswordReset(ctx context.Context, req authflow.ResetRequest) (authflow.MessageResponse, error) {
	var resp authflow.MessageResponse
	if err := s.post(ctx, "/auth/password-reset/request", req, &resp); err != nil {
		return authflow.MessageResponse{}, err
	}
	return resp, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req authflow.ResetConfirmRequest) (authflow.MessageResponse, error) {
	var resp authflow.MessageResponse
	if err := s.post(ctx, "/auth/password-reset/confirm", req, &resp); err != nil {
		return authflow.MessageResponse{}, err
	}
	return resp, nil
}

// BeginTOTPSetup describes the begintotpsetup operation and its observable behavior.
//
// BeginTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// BeginTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) BeginTOTPSetup(ctx context.Context, req authflow.TOTPSetupRequest) (authflow.TOTPSetupResponse, error) {
	var resp authflow.TOTPSetupResponse
	if err := s.post(ctx, "/auth/2fa/setup", req, &resp); err != nil {
		return authflow.TOTPSetupResponse{}, err
	}
	return resp, nil
}

// ConfirmTOTPSetup describes the confirmtotpsetup operation and its observable behavior.
//
// ConfirmTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ConfirmTOTPSetup(ctx context.Context, req authflow.TOTPConfirmRequest) (authflow.TOTPBackupResponse, error) {
	var resp authflow.TOTPBackupResponse
	if err := s.post(ctx, "/auth/2fa/confirm", req, &resp); err != nil {
		return authflow.TOTPBackupResponse{}, err
	}
	return resp, nil
}

func (s *Service) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if ip := authflow.ClientIPFromContext(ctx); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if ua := authflow.UserAgentFromContext(ctx); ua != "" {
		req.Header.Set("X-Client-User-Agent", ua)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("account service call failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return errors.New("account service is unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		s.log.Warn("account service response read failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return errors.New("account service response could not be read")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.log.Debug("account service rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return errors.New(errorMessage(resp.StatusCode, data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("account service sent malformed response",
			zap.String("path", path),
			zap.Error(err),
		)
		return errors.New("account service sent a malformed response")
	}

	return nil
}

// errorMessage extracts the backend's own error text so flow messages
// show what the server said, not an HTTP status dump.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return fmt.Sprintf("account service returned status %d", status)
}
