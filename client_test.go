package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/calmreach/authflow/internal/vault"
)

var flowTestBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// mockService implements AccountService with per-method function
// fields. Calling a method whose field is unset fails the test.
type mockService struct {
	t *testing.T

	signIn          func(context.Context, SignInRequest) (SignInResponse, error)
	verifyTwoFactor func(context.Context, TwoFactorRequest) (SessionResponse, error)
	register        func(context.Context, RegisterRequest) (RegisterResponse, error)
	verifyEmail     func(context.Context, VerifyEmailRequest) (VerifyEmailResponse, error)
	completeProfile func(context.Context, CompleteProfileRequest) (SessionResponse, error)
	resend          func(context.Context, ResendRequest) (MessageResponse, error)
	requestReset    func(context.Context, ResetRequest) (MessageResponse, error)
	confirmReset    func(context.Context, ResetConfirmRequest) (MessageResponse, error)
	beginTOTP       func(context.Context, TOTPSetupRequest) (TOTPSetupResponse, error)
	confirmTOTP     func(context.Context, TOTPConfirmRequest) (TOTPBackupResponse, error)
}

var errUnexpectedCall = errors.New("unexpected service call")

func (m *mockService) SignIn(ctx context.Context, req SignInRequest) (SignInResponse, error) {
	if m.signIn == nil {
		m.t.Errorf("unexpected SignIn call: %+v", req)
		return SignInResponse{}, errUnexpectedCall
	}
	return m.signIn(ctx, req)
}

func (m *mockService) VerifyTwoFactor(ctx context.Context, req TwoFactorRequest) (SessionResponse, error) {
	if m.verifyTwoFactor == nil {
		m.t.Errorf("unexpected VerifyTwoFactor call: %+v", req)
		return SessionResponse{}, errUnexpectedCall
	}
	return m.verifyTwoFactor(ctx, req)
}

func (m *mockService) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	if m.register == nil {
		m.t.Errorf("unexpected Register call: %+v", req)
		return RegisterResponse{}, errUnexpectedCall
	}
	return m.register(ctx, req)
}

func (m *mockService) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (VerifyEmailResponse, error) {
	if m.verifyEmail == nil {
		m.t.Errorf("unexpected VerifyEmail call: %+v", req)
		return VerifyEmailResponse{}, errUnexpectedCall
	}
	return m.verifyEmail(ctx, req)
}

func (m *mockService) CompleteProfile(ctx context.Context, req CompleteProfileRequest) (SessionResponse, error) {
	if m.completeProfile == nil {
		m.t.Errorf("unexpected CompleteProfile call: %+v", req)
		return SessionResponse{}, errUnexpectedCall
	}
	return m.completeProfile(ctx, req)
}

func (m *mockService) ResendVerification(ctx context.Context, req ResendRequest) (MessageResponse, error) {
	if m.resend == nil {
		m.t.Errorf("unexpected ResendVerification call: %+v", req)
		return MessageResponse{}, errUnexpectedCall
	}
	return m.resend(ctx, req)
}

func (m *mockService) RequestPasswordReset(ctx context.Context, req ResetRequest) (MessageResponse, error) {
	if m.requestReset == nil {
		m.t.Errorf("unexpected RequestPasswordReset call: %+v", req)
		return MessageResponse{}, errUnexpectedCall
	}
	return m.requestReset(ctx, req)
}

func (m *mockService) ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) (MessageResponse, error) {
	if m.confirmReset == nil {
		m.t.Errorf("unexpected ConfirmPasswordReset call: %+v", req)
		return MessageResponse{}, errUnexpectedCall
	}
	return m.confirmReset(ctx, req)
}

func (m *mockService) BeginTOTPSetup(ctx context.Context, req TOTPSetupRequest) (TOTPSetupResponse, error) {
	if m.beginTOTP == nil {
		m.t.Errorf("unexpected BeginTOTPSetup call: %+v", req)
		return TOTPSetupResponse{}, errUnexpectedCall
	}
	return m.beginTOTP(ctx, req)
}

func (m *mockService) ConfirmTOTPSetup(ctx context.Context, req TOTPConfirmRequest) (TOTPBackupResponse, error) {
	if m.confirmTOTP == nil {
		m.t.Errorf("unexpected ConfirmTOTPSetup call: %+v", req)
		return TOTPBackupResponse{}, errUnexpectedCall
	}
	return m.confirmTOTP(ctx, req)
}

func newMockService(t *testing.T) *mockService {
	t.Helper()
	return &mockService{t: t}
}

// newTestClient builds a client over svc with a controllable clock.
// Tests advance time by assigning through the returned pointer.
func newTestClient(t *testing.T, svc AccountService) (*Client, *time.Time) {
	t.Helper()
	now := flowTestBase
	client, err := New().
		WithService(svc).
		WithClock(func() time.Time { return now }).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client, &now
}

// newAuditedClient is newTestClient with audit capture and metrics on.
func newAuditedClient(t *testing.T, svc AccountService) (*Client, *ChannelSink) {
	t.Helper()
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	sink := NewChannelSink(128)
	client, err := New().
		WithConfig(cfg).
		WithService(svc).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return client, sink
}

// drainAudit closes the client so buffered events flush, then empties
// the sink.
func drainAudit(client *Client, sink *ChannelSink) []AuditEvent {
	client.Close()
	var events []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestBuildRequiresService(t *testing.T) {
	_, err := New().Build()
	if !errors.Is(err, ErrNilService) {
		t.Fatalf("expected ErrNilService, got %v", err)
	}
}

func TestBuildRejectsReuse(t *testing.T) {
	b := New().WithService(newMockService(t))
	client, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer client.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retry.MaxAttempts = 0
	if _, err := New().WithConfig(cfg).WithService(newMockService(t)).Build(); err == nil {
		t.Fatal("expected Build to reject zero retry attempts")
	}
}

func TestPostureReportReflectsWiring(t *testing.T) {
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	client, err := New().
		WithConfig(cfg).
		WithService(newMockService(t)).
		WithAuditSink(NewChannelSink(8)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	report := client.PostureReport()
	if report.RetryMaxAttempts != 3 || report.RetryCooldown != 5*time.Second {
		t.Fatalf("unexpected retry posture: %+v", report)
	}
	if report.ChallengeBackend != "memory" || report.ChallengeShared {
		t.Fatalf("expected process-local challenge store without redis: %+v", report)
	}
	if !report.AuditActive || !report.MetricsActive || !report.LatencyHistogramsActive {
		t.Fatalf("expected observability posture to be active: %+v", report)
	}

	var nilClient *Client
	if got := nilClient.PostureReport(); got != (PostureReport{}) {
		t.Fatalf("expected zero report from nil client, got %+v", got)
	}
}

// A vault supplied via WithVault must be the one challenge records land
// in, and must win over the builder's own wiring.
func TestBuildWithCustomVault(t *testing.T) {
	custom := vault.NewMemory()
	svc := newMockService(t)
	svc.signIn = func(context.Context, SignInRequest) (SignInResponse, error) {
		return SignInResponse{RequiresTwoFactor: true, TempToken: "tmp-1", AccountID: "1", AccountName: "John Doe"}, nil
	}
	svc.verifyTwoFactor = func(_ context.Context, req TwoFactorRequest) (SessionResponse, error) {
		if req.TempToken != "tmp-1" {
			t.Errorf("expected stored temp token, got %q", req.TempToken)
		}
		return SessionResponse{AccountID: "1", AccountName: "John Doe"}, nil
	}

	client, err := New().
		WithConfig(defaultConfig()).
		WithService(svc).
		WithVault(custom).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	report := client.PostureReport()
	if report.ChallengeBackend != "custom" || report.ChallengeShared {
		t.Fatalf("unexpected challenge posture: %+v", report)
	}

	ctx := WithFlowSession(context.Background(), "custom-vault-session")
	flow := client.NewSignin()
	if res := flow.Start(ctx, SigninInput{Email: "a@b.com", Password: "pw"}); res.Err != nil {
		t.Fatalf("Start failed: %v", res.Err)
	}

	rec, err := custom.Get(ctx, "custom-vault-session")
	if err != nil {
		t.Fatalf("expected challenge in the injected vault: %v", err)
	}
	if rec.Token != "tmp-1" {
		t.Fatalf("unexpected stored token %q", rec.Token)
	}

	if res := flow.VerifyTwoFactor(ctx, "123456"); !res.Success {
		t.Fatalf("VerifyTwoFactor failed: %+v", res)
	}
	if _, err := custom.Get(ctx, "custom-vault-session"); !errors.Is(err, vault.ErrMiss) {
		t.Fatalf("expected challenge to be consumed, got %v", err)
	}
}

// A built client must not observe later mutations of the caller's
// config value.
func TestBuildConfigIsolatedFromCaller(t *testing.T) {
	cfg := defaultConfig()
	b := New().WithConfig(cfg).WithService(newMockService(t))
	cfg.Retry.MaxAttempts = 99

	client, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	if got := client.PostureReport().RetryMaxAttempts; got != 3 {
		t.Fatalf("expected snapshot of 3 attempts, got %d", got)
	}
}

func TestClientNilSafeObservability(t *testing.T) {
	var client *Client
	client.Close()
	if got := client.AuditDropped(); got != 0 {
		t.Fatalf("expected zero drops on nil client, got %d", got)
	}
	snap := client.MetricsSnapshot()
	if snap.Counters == nil || snap.Histograms == nil {
		t.Fatal("expected empty maps from nil client snapshot")
	}
}

func TestMetricsSnapshotCountsFlowOutcomes(t *testing.T) {
	svc := newMockService(t)
	svc.signIn = func(context.Context, SignInRequest) (SignInResponse, error) {
		return SignInResponse{}, errors.New("invalid credentials")
	}
	client, _ := newAuditedClient(t, svc)
	defer client.Close()

	flow := client.NewSignin()
	flow.Start(context.Background(), SigninInput{Email: "a@b.com", Password: "pw"})
	flow.Start(context.Background(), SigninInput{})

	snap := client.MetricsSnapshot()
	if got := snap.Counters[MetricSigninFailure]; got != 1 {
		t.Fatalf("expected one signin failure, got %d", got)
	}
	if got := snap.Counters[MetricValidationRejected]; got != 1 {
		t.Fatalf("expected one validation rejection, got %d", got)
	}
}

func TestAuditTrailForSigninOutcomes(t *testing.T) {
	svc := newMockService(t)
	svc.signIn = func(_ context.Context, req SignInRequest) (SignInResponse, error) {
		if req.Email == "down@b.com" {
			return SignInResponse{}, errors.New("service down")
		}
		return SignInResponse{AccountID: "1", AccountName: "John Doe", Message: "Signin successful!"}, nil
	}
	client, sink := newAuditedClient(t, svc)

	flow := client.NewSignin()
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	flow.Start(ctx, SigninInput{Email: "a@b.com", Password: "pw"})

	failed := client.NewSignin()
	failed.Start(ctx, SigninInput{Email: "down@b.com", Password: "pw"})

	events := drainAudit(client, sink)
	var success, failure *AuditEvent
	for i := range events {
		switch events[i].EventType {
		case auditEventSigninSuccess:
			success = &events[i]
		case auditEventSigninFailure:
			failure = &events[i]
		}
	}
	if success == nil {
		t.Fatal("expected a signin_success event")
	}
	if success.Flow != "signin" || success.AccountID != "1" || !success.Success {
		t.Fatalf("unexpected success event: %+v", *success)
	}
	if success.Session != flow.Session() {
		t.Fatalf("expected session %q, got %q", flow.Session(), success.Session)
	}
	if success.IP != "203.0.113.9" {
		t.Fatalf("expected propagated client IP, got %q", success.IP)
	}
	if failure == nil {
		t.Fatal("expected a signin_failure event")
	}
	if failure.Success || failure.Error != string(auditErrRemote) {
		t.Fatalf("unexpected failure event: %+v", *failure)
	}
}

// Audit events carry coarse error codes, never raw causes, so a
// backend error that echoes credentials cannot reach the sink.
func TestAuditEventsCarryNoCredentials(t *testing.T) {
	const password = "correct-password-123"
	svc := newMockService(t)
	svc.signIn = func(_ context.Context, req SignInRequest) (SignInResponse, error) {
		return SignInResponse{}, fmt.Errorf("bad credentials for %s with %s", req.Email, password)
	}
	client, sink := newAuditedClient(t, svc)

	flow := client.NewSignin()
	flow.Start(context.Background(), SigninInput{Email: "a@b.com", Password: password})

	events := drainAudit(client, sink)
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}
	for _, ev := range events {
		if strings.Contains(ev.Error, password) {
			t.Fatalf("credential leaked in audit error: %q", ev.Error)
		}
		for k, v := range ev.Detail {
			if strings.Contains(k, password) || strings.Contains(v, password) {
				t.Fatalf("credential leaked in audit detail: %q=%q", k, v)
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrBusy, auditErrBusy},
		{ErrValidation, auditErrValidation},
		{ErrFlowState, auditErrFlowState},
		{ErrRetryDenied, auditErrRetryDenied},
		{ErrVaultUnavailable, auditErrChallenge},
		{ErrRemote, auditErrRemote},
		{errors.New("raw remote cause"), auditErrRemote},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
