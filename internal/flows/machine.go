package flows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calmreach/authflow/internal/retry"
)

// Phase is one named state of a flow. Values are flow-specific and
// supplied through the Table.
type Phase string

// Step describes one remote round-trip of a flow: the phase shown while
// the call is outstanding and the phase entered when the call succeeds
// without completing the flow (a secondary step is still required).
// Name feeds the normalized failure message "<Name> failed: <cause>".
type Step struct {
	Name             string
	RunningPhase     Phase
	RunningProgress  int
	AwaitingPhase    Phase
	AwaitingProgress int
}

// Table is the transition table a Machine is built from.
type Table struct {
	Idle      Phase
	Completed Phase
	Failed    Phase
	Steps     []Step
}

// Outcome is what a remote call decided: Done completes the flow,
// otherwise the machine parks in the step's awaiting phase and Message
// is returned to the caller as guidance. Apply, when set, runs under the
// machine lock while the outcome settles and is skipped if Reset ran
// during the call, so controllers use it for payload writes that must
// not land after a reset.
type Outcome struct {
	Done    bool
	Message string
	Apply   func()
}

// Result is the only shape flow actions return. Remote failures are
// normalized into Message; Err carries the error kind for errors.Is,
// never a panic or a raw remote error surfaced to the caller.
type Result struct {
	Success bool
	Message string
	Err     error
}

// RunFunc performs one remote round-trip with input already captured.
type RunFunc func(ctx context.Context) (Outcome, error)

// State is a point-in-time copy of machine internals for diagnostics.
type State struct {
	Phase       Phase
	Loading     bool
	Error       string
	RetryCount  int
	LastAttempt time.Time
	Step        int
	InputStored bool
}

// Config assembles a Machine. A zero Policy falls back to the default
// cap and cooldown; a nil Now falls back to time.Now.
type Config struct {
	Table  Table
	Policy retry.Policy
	Now    func() time.Time
}

// Machine drives one flow instance through its table: it owns the phase,
// loading flag, error message, and retry bookkeeping, and serializes
// actions so only one remote call is outstanding at a time. The mutex is
// released around the remote call itself.
type Machine struct {
	mu sync.Mutex

	table  Table
	policy retry.Policy
	now    func() time.Time

	phase       Phase
	loading     bool
	errMsg      string
	retryCount  int
	lastAttempt time.Time

	// gen invalidates in-flight settlements after Reset.
	gen      uint64
	lastStep int
	lastRun  RunFunc
}

const busyMessage = "Another operation is in progress"

func NewMachine(cfg Config) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy.MaxAttempts <= 0 && cfg.Policy.Cooldown <= 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	return &Machine{
		table:  cfg.Table,
		policy: cfg.Policy,
		now:    cfg.Now,
		phase:  cfg.Table.Idle,
	}
}

// Run performs step through run, which is stored so Retry can re-issue
// it with the original input. The mutex is held only while the machine
// enters the running phase; the remote call itself runs unlocked.
func (m *Machine) Run(ctx context.Context, step int, run RunFunc) Result {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return Result{Message: busyMessage, Err: ErrBusy}
	}
	if step < 0 || step >= len(m.table.Steps) {
		m.mu.Unlock()
		return Result{Message: "unknown flow step", Err: ErrFlowState}
	}
	spec := m.table.Steps[step]
	gen := m.gen
	m.phase = spec.RunningPhase
	m.loading = true
	m.errMsg = ""
	m.lastStep = step
	m.lastRun = run
	m.mu.Unlock()

	outcome, err := run(ctx)
	return m.settle(gen, spec, outcome, err)
}

// RejectValidation reports input that failed a local rule. The message
// lands in the error field; phase and loading stay untouched, nothing
// remote is called, and no attempt is stored. While an action is in
// flight the busy result wins over the validation result.
func (m *Machine) RejectValidation(field, message string) Result {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return Result{Message: busyMessage, Err: ErrBusy}
	}
	m.errMsg = message
	m.mu.Unlock()
	return Result{Message: message, Err: fmt.Errorf("%w: %s", ErrValidation, field)}
}

// RejectState reports an action whose flow precondition is missing,
// such as a secondary step with no stored token. The message lands in
// the error field; phase and loading stay untouched and nothing remote
// is called.
func (m *Machine) RejectState(message string) Result {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return Result{Message: busyMessage, Err: ErrBusy}
	}
	m.errMsg = message
	m.mu.Unlock()
	return Result{Message: message, Err: ErrFlowState}
}

// Retry re-issues the stored attempt after three ordered guards: an
// attempt must exist, the attempt cap must not be reached, and the
// cooldown must have elapsed. A denied retry leaves every field exactly
// as it was, including the original error message and the counter.
func (m *Machine) Retry(ctx context.Context) Result {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return Result{Message: busyMessage, Err: ErrBusy}
	}
	if m.lastRun == nil {
		m.mu.Unlock()
		return Result{Message: "No previous attempt to retry", Err: ErrRetryDenied}
	}
	if d := m.policy.Check(m.retryCount, m.lastAttempt, m.now()); !d.Allowed {
		m.mu.Unlock()
		return Result{Message: d.Reason, Err: ErrRetryDenied}
	}
	m.retryCount++
	spec := m.table.Steps[m.lastStep]
	run := m.lastRun
	gen := m.gen
	m.phase = spec.RunningPhase
	m.loading = true
	m.errMsg = ""
	m.mu.Unlock()

	outcome, err := run(ctx)
	return m.settle(gen, spec, outcome, err)
}

// settle applies the remote call's outcome. If Reset ran while the call
// was outstanding the state write is discarded, but the caller still
// receives the computed result.
func (m *Machine) settle(gen uint64, spec Step, outcome Outcome, err error) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	stale := gen != m.gen
	if err != nil {
		msg := spec.Name + " failed: " + err.Error()
		if !stale {
			m.loading = false
			m.phase = m.table.Failed
			m.errMsg = msg
			m.lastAttempt = m.now()
		}
		return Result{Message: msg, Err: fmt.Errorf("%w: %v", ErrRemote, err)}
	}
	if outcome.Done {
		if !stale {
			m.loading = false
			m.phase = m.table.Completed
			m.errMsg = ""
			m.retryCount = 0
			m.lastAttempt = time.Time{}
			m.lastRun = nil
			if outcome.Apply != nil {
				outcome.Apply()
			}
		}
		return Result{Success: true, Message: outcome.Message}
	}
	if !stale {
		m.loading = false
		m.phase = spec.AwaitingPhase
		if outcome.Apply != nil {
			outcome.Apply()
		}
	}
	return Result{Message: outcome.Message}
}

// ClearError drops the error message without altering the phase.
func (m *Machine) ClearError() {
	m.mu.Lock()
	m.errMsg = ""
	m.mu.Unlock()
}

// Reset returns every field to its default and invalidates any
// outstanding remote call's state write. Reset is never busy-guarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.gen++
	m.phase = m.table.Idle
	m.loading = false
	m.errMsg = ""
	m.retryCount = 0
	m.lastAttempt = time.Time{}
	m.lastStep = 0
	m.lastRun = nil
	m.mu.Unlock()
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *Machine) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

func (m *Machine) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// Snapshot copies the machine state for debug output.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Phase:       m.phase,
		Loading:     m.loading,
		Error:       m.errMsg,
		RetryCount:  m.retryCount,
		LastAttempt: m.lastAttempt,
		Step:        m.lastStep,
		InputStored: m.lastRun != nil,
	}
}

// Progress maps the current phase onto 0..100 using the table's step
// values. A failed flow reports the first step's running value once a
// retry has been spent, and zero before that.
func (m *Machine) Progress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case m.table.Idle:
		return 0
	case m.table.Completed:
		return 100
	case m.table.Failed:
		if m.retryCount > 0 && len(m.table.Steps) > 0 {
			return m.table.Steps[0].RunningProgress
		}
		return 0
	}
	for _, s := range m.table.Steps {
		if m.phase == s.RunningPhase {
			return s.RunningProgress
		}
		if m.phase == s.AwaitingPhase {
			return s.AwaitingProgress
		}
	}
	return 0
}

// CanRetry reports whether a Retry call would be admitted right now.
func (m *Machine) CanRetry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != m.table.Failed || m.lastRun == nil {
		return false
	}
	return m.policy.Check(m.retryCount, m.lastAttempt, m.now()).Allowed
}
