package authflow

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/calmreach/authflow/internal/audit"
	"github.com/calmreach/authflow/internal/flows"
	internalmetrics "github.com/calmreach/authflow/internal/metrics"
	"github.com/calmreach/authflow/internal/vault"
	"go.uber.org/zap"
)

// AccountService is the primary interface that callers must implement to
// connect authflow to their account backend. Each method is one remote
// round-trip; a returned error's Error() string is treated as the
// human-readable cause and surfaced to users verbatim.
//
// The remote package provides a JSON/HTTP implementation.
type AccountService interface {
	SignIn(ctx context.Context, req SignInRequest) (SignInResponse, error)
	VerifyTwoFactor(ctx context.Context, req TwoFactorRequest) (SessionResponse, error)
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	VerifyEmail(ctx context.Context, req VerifyEmailRequest) (VerifyEmailResponse, error)
	CompleteProfile(ctx context.Context, req CompleteProfileRequest) (SessionResponse, error)
	ResendVerification(ctx context.Context, req ResendRequest) (MessageResponse, error)
	RequestPasswordReset(ctx context.Context, req ResetRequest) (MessageResponse, error)
	ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) (MessageResponse, error)
	BeginTOTPSetup(ctx context.Context, req TOTPSetupRequest) (TOTPSetupResponse, error)
	ConfirmTOTPSetup(ctx context.Context, req TOTPConfirmRequest) (TOTPBackupResponse, error)
}

// SignInRequest defines a public type used by authflow APIs.
//
// SignInRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignInRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// SignInResponse defines a public type used by authflow APIs.
//
// SignInResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignInResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor,omitempty"`
	TempToken         string `json:"temp_token,omitempty"`
	AccountID         string `json:"account_id,omitempty"`
	AccountName       string `json:"account_name,omitempty"`
	SessionToken      string `json:"session_token,omitempty"`
	Message           string `json:"message,omitempty"`
}

// TwoFactorRequest defines a public type used by authflow APIs.
//
// TwoFactorRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorRequest struct {
	Code      string `json:"code"`
	TempToken string `json:"temp_token"`
}

// SessionResponse is the terminal payload of a flow that establishes a
// signed-in session: the account identity plus the session token the
// backend middleware verifies.
type SessionResponse struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Message      string `json:"message,omitempty"`
}

// RegisterRequest defines a public type used by authflow APIs.
//
// RegisterRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse defines a public type used by authflow APIs.
//
// RegisterResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterResponse struct {
	PendingToken string `json:"pending_token"`
	AccountID    string `json:"account_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// VerifyEmailRequest carries either the emailed link token (standalone
// verification) or the emailed code plus the pending signup token
// (signup flow). Exactly one of Token or Code+PendingToken is set.
type VerifyEmailRequest struct {
	Token        string `json:"token,omitempty"`
	Code         string `json:"code,omitempty"`
	PendingToken string `json:"pending_token,omitempty"`
}

// VerifyEmailResponse defines a public type used by authflow APIs.
//
// VerifyEmailResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyEmailResponse struct {
	ProfileRequired bool   `json:"profile_required,omitempty"`
	PendingToken    string `json:"pending_token,omitempty"`
	AccountID       string `json:"account_id,omitempty"`
	Message         string `json:"message,omitempty"`
}

// CompleteProfileRequest defines a public type used by authflow APIs.
//
// CompleteProfileRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CompleteProfileRequest struct {
	Name         string `json:"name"`
	PendingToken string `json:"pending_token"`
}

// ResendRequest defines a public type used by authflow APIs.
//
// ResendRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResendRequest struct {
	Email string `json:"email"`
}

// ResetRequest defines a public type used by authflow APIs.
//
// ResetRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetRequest struct {
	Email string `json:"email"`
}

// ResetConfirmRequest defines a public type used by authflow APIs.
//
// ResetConfirmRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse defines a public type used by authflow APIs.
//
// MessageResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

// TOTPSetupRequest defines a public type used by authflow APIs.
//
// TOTPSetupRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPSetupRequest struct {
	Password string `json:"password"`
}

// TOTPSetupResponse defines a public type used by authflow APIs.
//
// TOTPSetupResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPSetupResponse struct {
	SetupToken string `json:"setup_token"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TOTPConfirmRequest defines a public type used by authflow APIs.
//
// TOTPConfirmRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfirmRequest struct {
	Code       string `json:"code"`
	SetupToken string `json:"setup_token"`
}

// TOTPBackupResponse defines a public type used by authflow APIs.
//
// TOTPBackupResponse instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPBackupResponse struct {
	BackupCodes []string `json:"backup_codes,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Phase is one named state of a flow. Each controller documents its own
// phase set as Phase constants.
type Phase = flows.Phase

// Result is the shape every flow action returns. Remote and validation
// failures land in Message; Err carries the enumerated kind for
// errors.Is and is nil on success.
type Result = flows.Result

// FlowState is a point-in-time copy of a controller's machine state.
type FlowState = flows.State

// ChallengeRecord is one stored secondary-step challenge: the token the
// account service issued plus the identity it belongs to.
type ChallengeRecord = vault.Record

// ChallengeVault stores secondary-step challenges between flow steps.
// Implementations must expire records at the supplied TTL. Build wires
// the in-memory or Redis vault by default; [Builder.WithVault] swaps in
// a custom implementation.
type ChallengeVault = vault.Vault

// DebugInfo is the diagnostic snapshot returned by each controller's
// DebugInfo method.
type DebugInfo struct {
	Flow        string
	Session     string
	Phase       Phase
	Loading     bool
	Error       string
	RetryCount  int
	LastAttempt time.Time
	Progress    int
	CanRetry    bool
	Payload     map[string]string
}

// AuditEvent is a structured audit record emitted by flow controllers.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs events through a [zap.Logger].
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] that logs through logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.ID

const (
	// MetricSigninSuccess is an exported constant or variable used by the flow client.
	MetricSigninSuccess = MetricID(internalmetrics.SigninSuccess)
	// MetricSigninFailure is an exported constant or variable used by the flow client.
	MetricSigninFailure = MetricID(internalmetrics.SigninFailure)
	// MetricSigninTwoFactorRequired is an exported constant or variable used by the flow client.
	MetricSigninTwoFactorRequired = MetricID(internalmetrics.SigninTwoFactorRequired)
	// MetricTwoFactorSuccess is an exported constant or variable used by the flow client.
	MetricTwoFactorSuccess = MetricID(internalmetrics.TwoFactorSuccess)
	// MetricTwoFactorFailure is an exported constant or variable used by the flow client.
	MetricTwoFactorFailure = MetricID(internalmetrics.TwoFactorFailure)
	// MetricSignupSuccess is an exported constant or variable used by the flow client.
	MetricSignupSuccess = MetricID(internalmetrics.SignupSuccess)
	// MetricSignupFailure is an exported constant or variable used by the flow client.
	MetricSignupFailure = MetricID(internalmetrics.SignupFailure)
	// MetricEmailVerifySuccess is an exported constant or variable used by the flow client.
	MetricEmailVerifySuccess = MetricID(internalmetrics.EmailVerifySuccess)
	// MetricEmailVerifyFailure is an exported constant or variable used by the flow client.
	MetricEmailVerifyFailure = MetricID(internalmetrics.EmailVerifyFailure)
	// MetricProfileCompleteSuccess is an exported constant or variable used by the flow client.
	MetricProfileCompleteSuccess = MetricID(internalmetrics.ProfileCompleteSuccess)
	// MetricProfileCompleteFailure is an exported constant or variable used by the flow client.
	MetricProfileCompleteFailure = MetricID(internalmetrics.ProfileCompleteFailure)
	// MetricResetRequestSuccess is an exported constant or variable used by the flow client.
	MetricResetRequestSuccess = MetricID(internalmetrics.ResetRequestSuccess)
	// MetricResetRequestFailure is an exported constant or variable used by the flow client.
	MetricResetRequestFailure = MetricID(internalmetrics.ResetRequestFailure)
	// MetricResetConfirmSuccess is an exported constant or variable used by the flow client.
	MetricResetConfirmSuccess = MetricID(internalmetrics.ResetConfirmSuccess)
	// MetricResetConfirmFailure is an exported constant or variable used by the flow client.
	MetricResetConfirmFailure = MetricID(internalmetrics.ResetConfirmFailure)
	// MetricTOTPSetupRequested is an exported constant or variable used by the flow client.
	MetricTOTPSetupRequested = MetricID(internalmetrics.TOTPSetupRequested)
	// MetricTOTPSetupSuccess is an exported constant or variable used by the flow client.
	MetricTOTPSetupSuccess = MetricID(internalmetrics.TOTPSetupSuccess)
	// MetricTOTPSetupFailure is an exported constant or variable used by the flow client.
	MetricTOTPSetupFailure = MetricID(internalmetrics.TOTPSetupFailure)
	// MetricVerificationResent is an exported constant or variable used by the flow client.
	MetricVerificationResent = MetricID(internalmetrics.VerificationResent)
	// MetricRetryAttempt is an exported constant or variable used by the flow client.
	MetricRetryAttempt = MetricID(internalmetrics.RetryAttempt)
	// MetricRetryDenied is an exported constant or variable used by the flow client.
	MetricRetryDenied = MetricID(internalmetrics.RetryDenied)
	// MetricValidationRejected is an exported constant or variable used by the flow client.
	MetricValidationRejected = MetricID(internalmetrics.ValidationRejected)
	// MetricBusyRejected is an exported constant or variable used by the flow client.
	MetricBusyRejected = MetricID(internalmetrics.BusyRejected)
	// MetricChallengeHit is an exported constant or variable used by the flow client.
	MetricChallengeHit = MetricID(internalmetrics.ChallengeHit)
	// MetricChallengeMiss is an exported constant or variable used by the flow client.
	MetricChallengeMiss = MetricID(internalmetrics.ChallengeMiss)
	// MetricRemoteLatency is an exported constant or variable used by the flow client.
	MetricRemoteLatency = MetricID(internalmetrics.RemoteLatency)
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
