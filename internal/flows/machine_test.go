package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calmreach/authflow/internal/retry"
)

var machineBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func twoStepTable() Table {
	return Table{
		Idle:      "idle",
		Completed: "completed",
		Failed:    "failed",
		Steps: []Step{
			{Name: "Signin", RunningPhase: "signing_in", RunningProgress: 30, AwaitingPhase: "requires_2fa", AwaitingProgress: 60},
			{Name: "Two-factor verification", RunningPhase: "verifying_2fa", RunningProgress: 85},
		},
	}
}

// testMachine returns a machine with a controllable clock.
func testMachine(t *testing.T) (*Machine, *time.Time) {
	t.Helper()
	now := machineBase
	m := NewMachine(Config{
		Table:  twoStepTable(),
		Policy: retry.Policy{MaxAttempts: 3, Cooldown: 5 * time.Second},
		Now:    func() time.Time { return now },
	})
	return m, &now
}

func TestMachineStartsIdle(t *testing.T) {
	m, _ := testMachine(t)
	if m.Phase() != "idle" || m.Loading() || m.Error() != "" || m.RetryCount() != 0 {
		t.Fatalf("unexpected initial state: %+v", m.Snapshot())
	}
	if m.Progress() != 0 {
		t.Fatalf("expected progress 0, got %d", m.Progress())
	}
}

func TestRejectValidationTouchesOnlyError(t *testing.T) {
	m, _ := testMachine(t)

	res := m.RejectValidation("password", "Password is required")

	if res.Success {
		t.Fatalf("expected failure result")
	}
	if res.Message != "Password is required" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if !errors.Is(res.Err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", res.Err)
	}
	if m.Phase() != "idle" || m.Loading() {
		t.Fatalf("validation failure must not change phase or loading: %+v", m.Snapshot())
	}
	if m.Error() != "Password is required" {
		t.Fatalf("expected error message set, got %q", m.Error())
	}
	if m.Snapshot().InputStored {
		t.Fatalf("validation failure must not store the attempt")
	}
}

func TestRejectValidationWhileBusyReportsBusy(t *testing.T) {
	m, _ := testMachine(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Done: true}, nil
		})
	}()

	<-started
	res := m.RejectValidation("code", "Verification code is required")
	if !errors.Is(res.Err, ErrBusy) || res.Message != busyMessage {
		t.Fatalf("expected busy rejection, got %+v", res)
	}

	close(release)
	wg.Wait()
	if m.Error() != "" {
		t.Fatalf("busy rejection must not overwrite the error, got %q", m.Error())
	}
}

func TestRunCompletesFlow(t *testing.T) {
	m, _ := testMachine(t)

	res := m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{Done: true, Message: "Signin successful!"}, nil
	})

	if !res.Success || res.Message != "Signin successful!" || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if m.Phase() != "completed" || m.Loading() {
		t.Fatalf("expected completed and settled, got %+v", m.Snapshot())
	}
	if m.Progress() != 100 {
		t.Fatalf("expected progress 100, got %d", m.Progress())
	}
}

func TestRunParksInAwaitingPhase(t *testing.T) {
	m, _ := testMachine(t)

	res := m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{Message: "Two-factor authentication required. Please enter your verification code."}, nil
	})

	if res.Success {
		t.Fatalf("secondary-required must not report success")
	}
	if res.Message != "Two-factor authentication required. Please enter your verification code." {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if m.Phase() != "requires_2fa" || m.Loading() {
		t.Fatalf("expected requires_2fa and settled, got %+v", m.Snapshot())
	}
	if m.Progress() != 60 {
		t.Fatalf("expected progress 60, got %d", m.Progress())
	}
}

func TestRunRemoteFailureNormalizesMessage(t *testing.T) {
	m, now := testMachine(t)

	res := m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{}, errors.New("invalid credentials")
	})

	if res.Success {
		t.Fatalf("expected failure result")
	}
	if res.Message != "Signin failed: invalid credentials" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if !errors.Is(res.Err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", res.Err)
	}
	if m.Phase() != "failed" || m.Loading() {
		t.Fatalf("expected failed and settled, got %+v", m.Snapshot())
	}
	if m.Error() != "Signin failed: invalid credentials" {
		t.Fatalf("unexpected stored error: %q", m.Error())
	}
	if got := m.Snapshot().LastAttempt; !got.Equal(*now) {
		t.Fatalf("expected lastAttempt %v, got %v", *now, got)
	}
	if m.Progress() != 0 {
		t.Fatalf("failed without retry should report progress 0, got %d", m.Progress())
	}
}

func TestRunningPhaseVisibleDuringCall(t *testing.T) {
	m, _ := testMachine(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Done: true}, nil
		})
	}()

	<-started
	if m.Phase() != "signing_in" || !m.Loading() {
		t.Fatalf("expected in-flight state, got %+v", m.Snapshot())
	}
	if m.Progress() != 30 {
		t.Fatalf("expected progress 30, got %d", m.Progress())
	}
	close(release)
	wg.Wait()

	if m.Loading() {
		t.Fatalf("loading must settle after the call")
	}
}

func TestBusyGuardRejectsSecondAction(t *testing.T) {
	m, _ := testMachine(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Done: true}, nil
		})
	}()

	<-started
	calls := 0
	res := m.Run(context.Background(), 1, func(context.Context) (Outcome, error) {
		calls++
		return Outcome{}, nil
	})
	if !errors.Is(res.Err, ErrBusy) || res.Message != busyMessage {
		t.Fatalf("expected busy rejection, got %+v", res)
	}
	if calls != 0 {
		t.Fatalf("busy rejection must not invoke the remote call")
	}
	if retryRes := m.Retry(context.Background()); !errors.Is(retryRes.Err, ErrBusy) {
		t.Fatalf("expected busy retry rejection, got %+v", retryRes)
	}

	close(release)
	wg.Wait()
	if m.Phase() != "completed" {
		t.Fatalf("first action must settle normally, got %v", m.Phase())
	}
}

func TestRetryWithoutPriorAttempt(t *testing.T) {
	m, _ := testMachine(t)

	res := m.Retry(context.Background())
	if res.Success || res.Message != "No previous attempt to retry" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !errors.Is(res.Err, ErrRetryDenied) {
		t.Fatalf("expected ErrRetryDenied, got %v", res.Err)
	}
}

func TestRetryBlockedByCooldown(t *testing.T) {
	m, _ := testMachine(t)
	failOnce(t, m)

	res := m.Retry(context.Background())
	if res.Success || res.Message != "Please wait 5 seconds before retrying" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if m.RetryCount() != 0 {
		t.Fatalf("denied retry must not increment the counter, got %d", m.RetryCount())
	}
	if m.Error() != "Signin failed: boom" {
		t.Fatalf("denied retry must leave the original error, got %q", m.Error())
	}
}

func TestRetryAfterCooldownReusesStoredInput(t *testing.T) {
	m, now := testMachine(t)

	attempts := 0
	m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		attempts++
		if attempts == 1 {
			return Outcome{}, errors.New("temporarily unavailable")
		}
		return Outcome{Done: true, Message: "Signin successful!"}, nil
	})

	*now = now.Add(6 * time.Second)
	res := m.Retry(context.Background())
	if !res.Success || res.Message != "Signin successful!" {
		t.Fatalf("unexpected retry result: %+v", res)
	}
	if attempts != 2 {
		t.Fatalf("expected stored closure re-run, attempts=%d", attempts)
	}
	if m.Phase() != "completed" {
		t.Fatalf("expected completed, got %v", m.Phase())
	}
	if m.RetryCount() != 0 {
		t.Fatalf("success must reset retryCount, got %d", m.RetryCount())
	}
}

func TestRetryCapAfterThreeFailedRetries(t *testing.T) {
	m, now := testMachine(t)
	failOnce(t, m)

	for i := 0; i < 3; i++ {
		*now = now.Add(6 * time.Second)
		res := m.Retry(context.Background())
		if res.Success {
			t.Fatalf("retry %d unexpectedly succeeded", i+1)
		}
		if !errors.Is(res.Err, ErrRemote) {
			t.Fatalf("retry %d: expected remote failure, got %v", i+1, res.Err)
		}
	}
	if m.RetryCount() != 3 {
		t.Fatalf("expected retryCount 3, got %d", m.RetryCount())
	}

	*now = now.Add(time.Hour)
	res := m.Retry(context.Background())
	if res.Success || res.Message != "Maximum retry attempts (3) exceeded" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if m.RetryCount() != 3 {
		t.Fatalf("cap rejection must not move the counter, got %d", m.RetryCount())
	}
	if m.Progress() != 30 {
		t.Fatalf("failed after retries should report progress 30, got %d", m.Progress())
	}
}

func TestRetryReplaysFailedSecondaryStep(t *testing.T) {
	m, now := testMachine(t)

	m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{Message: "code required"}, nil
	})

	secondary := 0
	m.Run(context.Background(), 1, func(context.Context) (Outcome, error) {
		secondary++
		if secondary == 1 {
			return Outcome{}, errors.New("wrong code")
		}
		return Outcome{Done: true}, nil
	})
	if m.Phase() != "failed" {
		t.Fatalf("expected failed, got %v", m.Phase())
	}

	*now = now.Add(6 * time.Second)
	res := m.Retry(context.Background())
	if !res.Success || secondary != 2 {
		t.Fatalf("expected secondary step replay, res=%+v calls=%d", res, secondary)
	}
	if m.Phase() != "completed" {
		t.Fatalf("expected completed, got %v", m.Phase())
	}
}

func TestCanRetry(t *testing.T) {
	m, now := testMachine(t)
	if m.CanRetry() {
		t.Fatalf("idle machine must not allow retry")
	}

	failOnce(t, m)
	if m.CanRetry() {
		t.Fatalf("cooldown must gate CanRetry")
	}

	*now = now.Add(6 * time.Second)
	if !m.CanRetry() {
		t.Fatalf("expected CanRetry after cooldown")
	}

	m.Reset()
	if m.CanRetry() {
		t.Fatalf("reset machine must not allow retry")
	}
}

func TestClearErrorKeepsPhase(t *testing.T) {
	m, _ := testMachine(t)
	failOnce(t, m)

	m.ClearError()
	if m.Error() != "" {
		t.Fatalf("expected cleared error, got %q", m.Error())
	}
	if m.Phase() != "failed" {
		t.Fatalf("ClearError must not alter phase, got %v", m.Phase())
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m, now := testMachine(t)
	failOnce(t, m)
	*now = now.Add(6 * time.Second)
	m.Retry(context.Background())

	m.Reset()
	snap := m.Snapshot()
	if snap.Phase != "idle" || snap.Loading || snap.Error != "" || snap.RetryCount != 0 {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
	if !snap.LastAttempt.IsZero() || snap.InputStored {
		t.Fatalf("reset must discard the stored attempt: %+v", snap)
	}
}

func TestResetDiscardsInFlightSettlement(t *testing.T) {
	m, _ := testMachine(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Done: true, Message: "late"}, nil
		})
	}()

	<-started
	m.Reset()
	close(release)
	wg.Wait()

	if m.Phase() != "idle" {
		t.Fatalf("late settlement must not resurrect state, got %v", m.Phase())
	}
	if m.Snapshot().InputStored {
		t.Fatalf("reset must drop the stored attempt")
	}
}

func TestOutcomeApplyRunsOnSettle(t *testing.T) {
	m, _ := testMachine(t)
	applied := 0

	m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{Message: "code required", Apply: func() { applied++ }}, nil
	})
	if applied != 1 {
		t.Fatalf("awaiting settlement must run Apply once, got %d", applied)
	}

	m.Run(context.Background(), 1, func(context.Context) (Outcome, error) {
		return Outcome{Done: true, Apply: func() { applied++ }}, nil
	})
	if applied != 2 {
		t.Fatalf("completed settlement must run Apply once, got %d", applied)
	}
}

func TestOutcomeApplySkippedAfterReset(t *testing.T) {
	m, _ := testMachine(t)
	release := make(chan struct{})
	started := make(chan struct{})
	applied := 0

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Done: true, Apply: func() { applied++ }}, nil
		})
	}()

	<-started
	m.Reset()
	close(release)
	wg.Wait()

	if applied != 0 {
		t.Fatalf("stale settlement must skip Apply, got %d", applied)
	}
}

func TestFreshStartFromFailedKeepsRetryBudget(t *testing.T) {
	m, now := testMachine(t)
	failOnce(t, m)
	*now = now.Add(6 * time.Second)
	m.Retry(context.Background())
	if m.RetryCount() != 1 {
		t.Fatalf("expected retryCount 1, got %d", m.RetryCount())
	}

	// A manual re-submit does not refund spent retries.
	res := m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{}, errors.New("still down")
	})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if m.RetryCount() != 1 {
		t.Fatalf("fresh start must not reset retryCount, got %d", m.RetryCount())
	}
}

func TestRetryAfterCompletionReportsNoPreviousAttempt(t *testing.T) {
	m, _ := testMachine(t)
	m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{Done: true}, nil
	})

	res := m.Retry(context.Background())
	if res.Message != "No previous attempt to retry" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if m.Phase() != "completed" {
		t.Fatalf("denied retry must not move the phase, got %v", m.Phase())
	}
}

func TestUnknownStepRejected(t *testing.T) {
	m, _ := testMachine(t)
	res := m.Run(context.Background(), 5, func(context.Context) (Outcome, error) {
		return Outcome{Done: true}, nil
	})
	if !errors.Is(res.Err, ErrFlowState) {
		t.Fatalf("expected ErrFlowState, got %v", res.Err)
	}
	if m.Phase() != "idle" {
		t.Fatalf("unknown step must not move the phase, got %v", m.Phase())
	}
}

func TestRejectState(t *testing.T) {
	m, _ := testMachine(t)
	res := m.RejectState("No temporary token found. Please sign in again.")
	if res.Success || !errors.Is(res.Err, ErrFlowState) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if m.Error() != "No temporary token found. Please sign in again." {
		t.Fatalf("expected stored message, got %q", m.Error())
	}
	if m.Phase() != "idle" {
		t.Fatalf("RejectState must not move the phase, got %v", m.Phase())
	}
}

// failOnce drives the machine into the failed phase with a single
// failing primary attempt at the current clock.
func failOnce(t *testing.T, m *Machine) {
	t.Helper()
	res := m.Run(context.Background(), 0, func(context.Context) (Outcome, error) {
		return Outcome{}, errors.New("boom")
	})
	if res.Success {
		t.Fatalf("expected failing attempt")
	}
	if m.Phase() != "failed" {
		t.Fatalf("expected failed phase, got %v", m.Phase())
	}
}
