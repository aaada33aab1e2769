// Command authflow-probe drives the authentication flows end to end and
// reports per-flow latency percentiles. By default it runs against an
// in-process fake account service and a throwaway miniredis, so it works
// with no infrastructure; point it at real backends with --remote-url
// and --redis-addr.
//
// Run:
//
//	go run ./cmd/authflow-probe --workers 64 --rounds 200
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	authflow "github.com/calmreach/authflow"
	"github.com/calmreach/authflow/remote"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		workers    int
		rounds     int
		redisAddr  string
		remoteURL  string
		cooldown   time.Duration
		failEvery  int
		parkEvery  int
	)

	flagSet := pflag.NewFlagSet("authflow-probe", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "authflow-probe.yaml", "optional YAML config file")
	flagSet.IntVar(&workers, "workers", 64, "concurrent flow workers")
	flagSet.IntVar(&rounds, "rounds", 100, "flow runs per worker per phase")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address for the challenge vault; empty starts miniredis")
	flagSet.StringVar(&remoteURL, "remote-url", "", "account service base URL; empty uses the in-process fake")
	flagSet.DurationVar(&cooldown, "cooldown", 50*time.Millisecond, "retry cooldown override so failed rounds retry quickly")
	flagSet.IntVar(&failEvery, "fail-every", 20, "fake service fails every Nth call (0 disables)")
	flagSet.IntVar(&parkEvery, "park-every", 2, "fake service parks every Nth sign-in for two-factor (0 disables)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if workers <= 0 || rounds <= 0 {
		return errors.New("workers and rounds must be > 0")
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := authflow.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Retry.Cooldown = cooldown

	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var client redis.UniversalClient
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		log.Info("using miniredis", zap.String("addr", addr))
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		log.Info("using redis", zap.String("addr", addr))
	}
	defer cleanup()

	var service authflow.AccountService
	if remoteURL != "" {
		cfg.Remote.BaseURL = remoteURL
		service, err = remote.New(cfg.Remote, nil, log)
		if err != nil {
			return err
		}
		log.Info("using remote account service", zap.String("url", remoteURL))
	} else {
		service = &fakeAccountService{failEvery: uint64(failEvery), parkEvery: uint64(parkEvery)}
		log.Info("using in-process fake account service",
			zap.Int("fail_every", failEvery),
			zap.Int("park_every", parkEvery),
		)
	}

	flows, err := authflow.New().
		WithConfig(cfg).
		WithService(service).
		WithRedis(client).
		WithLogger(log).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer flows.Close()

	ctx := context.Background()

	phases := []struct {
		name string
		run  func(context.Context, *authflow.Client, time.Duration) error
	}{
		{"signin", runSigninRound},
		{"signup", runSignupRound},
		{"email-verify", runEmailVerifyRound},
		{"password-reset", runPasswordResetRound},
		{"totp-setup", runTOTPSetupRound},
	}

	fmt.Println("---- results ----")
	for _, phase := range phases {
		stats, err := runPhase(ctx, flows, workers, rounds, cooldown, phase.run)
		if err != nil {
			return fmt.Errorf("%s phase: %w", phase.name, err)
		}
		printStats(phase.name, stats)
	}

	printCounters(flows.MetricsSnapshot())
	return nil
}

/* ====================================
PHASE RUNNER
==================================== */

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runPhase fans rounds out over workers. A round that still fails after
// one retry counts as a failure; transport and state errors abort the
// phase only when the round reports them as fatal.
func runPhase(
	ctx context.Context,
	flows *authflow.Client,
	workers, rounds int,
	cooldown time.Duration,
	round func(context.Context, *authflow.Client, time.Duration) error,
) (phaseStats, error) {
	var (
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, workers*rounds)
	)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				t0 := time.Now()
				err := round(ctx, flows, cooldown)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}

	return computeStats(time.Since(start), latencies, failures), nil
}

// settle retries a failed result once after the cooldown. Synthetic
// backend failures are part of the probe; one retry is enough to tell
// the retry path works without stalling the phase.
func settle(ctx context.Context, res authflow.Result, retry func(context.Context) authflow.Result, cooldown time.Duration) authflow.Result {
	if res.Err == nil {
		return res
	}
	time.Sleep(cooldown)
	return retry(ctx)
}

func runSigninRound(ctx context.Context, flows *authflow.Client, cooldown time.Duration) error {
	flow := flows.NewSignin()
	defer flow.Reset()

	res := flow.Start(ctx, authflow.SigninInput{Email: "probe@example.com", Password: "correct-horse"})
	res = settle(ctx, res, flow.Retry, cooldown)
	if res.Err != nil {
		return res.Err
	}
	if !res.Success {
		res = flow.VerifyTwoFactor(ctx, "123456")
		res = settle(ctx, res, flow.Retry, cooldown)
	}
	return res.Err
}

func runSignupRound(ctx context.Context, flows *authflow.Client, cooldown time.Duration) error {
	flow := flows.NewSignup()
	defer flow.Reset()

	res := flow.Start(ctx, authflow.SignupInput{
		Email:           "probe@example.com",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	})
	res = settle(ctx, res, flow.Retry, cooldown)
	if res.Err != nil {
		return res.Err
	}

	res = flow.VerifyEmail(ctx, "123456")
	res = settle(ctx, res, flow.Retry, cooldown)
	if res.Err != nil {
		return res.Err
	}
	if res.Success {
		return nil
	}

	res = flow.CompleteProfile(ctx, "Probe User")
	res = settle(ctx, res, flow.Retry, cooldown)
	return res.Err
}

func runEmailVerifyRound(ctx context.Context, flows *authflow.Client, cooldown time.Duration) error {
	flow := flows.NewEmailVerification()
	defer flow.Reset()

	res := flow.Start(ctx, "verify-token")
	res = settle(ctx, res, flow.Retry, cooldown)
	return res.Err
}

func runPasswordResetRound(ctx context.Context, flows *authflow.Client, cooldown time.Duration) error {
	flow := flows.NewPasswordReset()
	defer flow.Reset()

	res := flow.Start(ctx, authflow.ResetInput{Email: "probe@example.com"})
	res = settle(ctx, res, flow.Retry, cooldown)
	if res.Err != nil {
		return res.Err
	}

	res = flow.Complete(ctx, authflow.ResetSubmission{
		Token:           "reset-token",
		NewPassword:     "new-horse",
		ConfirmPassword: "new-horse",
	})
	res = settle(ctx, res, flow.Retry, cooldown)
	return res.Err
}

func runTOTPSetupRound(ctx context.Context, flows *authflow.Client, cooldown time.Duration) error {
	flow := flows.NewTOTPSetup()
	defer flow.Reset()

	res := flow.Begin(ctx, "correct-horse")
	res = settle(ctx, res, flow.Retry, cooldown)
	if res.Err != nil {
		return res.Err
	}

	res = flow.Confirm(ctx, "123456")
	res = settle(ctx, res, flow.Retry, cooldown)
	return res.Err
}

/* ====================================
STATS
==================================== */

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: rounds=%d failures=%d total=%s rounds/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printCounters(snapshot authflow.MetricsSnapshot) {
	counters := []struct {
		name string
		id   authflow.MetricID
	}{
		{"signin_success", authflow.MetricSigninSuccess},
		{"signin_two_factor_required", authflow.MetricSigninTwoFactorRequired},
		{"two_factor_success", authflow.MetricTwoFactorSuccess},
		{"signup_success", authflow.MetricSignupSuccess},
		{"profile_complete_success", authflow.MetricProfileCompleteSuccess},
		{"reset_confirm_success", authflow.MetricResetConfirmSuccess},
		{"totp_setup_success", authflow.MetricTOTPSetupSuccess},
		{"retry_attempt", authflow.MetricRetryAttempt},
		{"retry_denied", authflow.MetricRetryDenied},
		{"challenge_hit", authflow.MetricChallengeHit},
		{"challenge_miss", authflow.MetricChallengeMiss},
	}

	fmt.Println("---- counters ----")
	for _, c := range counters {
		fmt.Printf("%s=%d\n", c.name, snapshot.Counters[c.id])
	}
}

/* ====================================
FAKE ACCOUNT SERVICE
==================================== */

// fakeAccountService is a deterministic in-process backend. Every Nth
// call fails so the probe exercises the retry gate, and every Nth
// sign-in parks for two-factor so it exercises the challenge vault.
type fakeAccountService struct {
	calls     uint64
	failEvery uint64
	parkEvery uint64
	signins   uint64
}

func (s *fakeAccountService) shouldFail() error {
	if s.failEvery == 0 {
		return nil
	}
	if atomic.AddUint64(&s.calls, 1)%s.failEvery == 0 {
		return errors.New("synthetic backend failure")
	}
	return nil
}

func (s *fakeAccountService) SignIn(_ context.Context, _ authflow.SignInRequest) (authflow.SignInResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.SignInResponse{}, err
	}
	n := atomic.AddUint64(&s.signins, 1)
	if s.parkEvery != 0 && n%s.parkEvery == 0 {
		return authflow.SignInResponse{
			RequiresTwoFactor: true,
			TempToken:         fmt.Sprintf("tmp-%d", n),
		}, nil
	}
	return authflow.SignInResponse{
		AccountID:    fmt.Sprintf("acct-%d", n),
		AccountName:  "Probe User",
		SessionToken: fmt.Sprintf("sess-%d", n),
	}, nil
}

func (s *fakeAccountService) VerifyTwoFactor(_ context.Context, req authflow.TwoFactorRequest) (authflow.SessionResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.SessionResponse{}, err
	}
	if req.TempToken == "" {
		return authflow.SessionResponse{}, errors.New("missing temp token")
	}
	return authflow.SessionResponse{
		AccountID:    "acct-2fa",
		AccountName:  "Probe User",
		SessionToken: "sess-2fa",
	}, nil
}

func (s *fakeAccountService) Register(_ context.Context, _ authflow.RegisterRequest) (authflow.RegisterResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.RegisterResponse{}, err
	}
	n := atomic.LoadUint64(&s.calls)
	return authflow.RegisterResponse{PendingToken: fmt.Sprintf("pend-%d", n)}, nil
}

func (s *fakeAccountService) VerifyEmail(_ context.Context, req authflow.VerifyEmailRequest) (authflow.VerifyEmailResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.VerifyEmailResponse{}, err
	}
	if req.Token == "" && req.PendingToken == "" {
		return authflow.VerifyEmailResponse{}, errors.New("missing verification token")
	}
	return authflow.VerifyEmailResponse{
		ProfileRequired: true,
		PendingToken:    req.PendingToken,
	}, nil
}

func (s *fakeAccountService) CompleteProfile(_ context.Context, req authflow.CompleteProfileRequest) (authflow.SessionResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.SessionResponse{}, err
	}
	if req.PendingToken == "" {
		return authflow.SessionResponse{}, errors.New("missing pending token")
	}
	return authflow.SessionResponse{
		AccountID:    "acct-new",
		AccountName:  req.Name,
		SessionToken: "sess-new",
	}, nil
}

func (s *fakeAccountService) ResendVerification(_ context.Context, _ authflow.ResendRequest) (authflow.MessageResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.MessageResponse{}, err
	}
	return authflow.MessageResponse{}, nil
}

func (s *fakeAccountService) RequestPasswordReset(_ context.Context, _ authflow.ResetRequest) (authflow.MessageResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.MessageResponse{}, err
	}
	return authflow.MessageResponse{}, nil
}

func (s *fakeAccountService) ConfirmPasswordReset(_ context.Context, req authflow.ResetConfirmRequest) (authflow.MessageResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.MessageResponse{}, err
	}
	if req.Token == "" {
		return authflow.MessageResponse{}, errors.New("missing reset token")
	}
	return authflow.MessageResponse{}, nil
}

func (s *fakeAccountService) BeginTOTPSetup(_ context.Context, _ authflow.TOTPSetupRequest) (authflow.TOTPSetupResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.TOTPSetupResponse{}, err
	}
	n := atomic.LoadUint64(&s.calls)
	return authflow.TOTPSetupResponse{
		SetupToken: fmt.Sprintf("setup-%d", n),
		Secret:     "JBSWY3DPEHPK3PXP",
		OTPAuthURL: "otpauth://totp/probe?secret=JBSWY3DPEHPK3PXP",
	}, nil
}

func (s *fakeAccountService) ConfirmTOTPSetup(_ context.Context, req authflow.TOTPConfirmRequest) (authflow.TOTPBackupResponse, error) {
	if err := s.shouldFail(); err != nil {
		return authflow.TOTPBackupResponse{}, err
	}
	if req.SetupToken == "" {
		return authflow.TOTPBackupResponse{}, errors.New("missing setup token")
	}
	return authflow.TOTPBackupResponse{
		BackupCodes: []string{"1111-2222", "3333-4444"},
	}, nil
}
