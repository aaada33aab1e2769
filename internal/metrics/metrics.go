package metrics

import (
	"sync/atomic"
	"time"
)

// ID selects one metric slot.
type ID uint16

const (
	SigninSuccess ID = iota
	SigninFailure
	SigninTwoFactorRequired
	TwoFactorSuccess
	TwoFactorFailure
	SignupSuccess
	SignupFailure
	EmailVerifySuccess
	EmailVerifyFailure
	ProfileCompleteSuccess
	ProfileCompleteFailure
	ResetRequestSuccess
	ResetRequestFailure
	ResetConfirmSuccess
	ResetConfirmFailure
	TOTPSetupRequested
	TOTPSetupSuccess
	TOTPSetupFailure
	VerificationResent
	RetryAttempt
	RetryDenied
	ValidationRejected
	BusyRejected
	ChallengeHit
	ChallengeMiss
	RemoteLatency
	idCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls which write paths are live.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds one padded counter per ID plus the remote-call latency
// histogram. All write paths are atomic and allocation-free.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy for exporters.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a remote-call duration. Only RemoteLatency carries a
// histogram; other IDs are ignored.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != RemoteLatency {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 1),
	}

	for id := ID(0); id < idCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[RemoteLatency].buckets[i])
		}
		s.Histograms[RemoteLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
