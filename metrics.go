package shieldforge

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an Engine counter or histogram.
type MetricID uint16

const (
	// MetricTokenIssued counts tokens signed by IssueToken and GenerateToken.
	MetricTokenIssued MetricID = iota
	// MetricTokenValidated counts tokens accepted by ValidateToken and VerifyToken.
	MetricTokenValidated
	// MetricTokenRejected counts tokens rejected by ValidateToken and VerifyToken.
	MetricTokenRejected
	// MetricTokenAlgorithmRejected counts rejections caused by a disallowed algorithm.
	MetricTokenAlgorithmRejected
	// MetricResetCodeGenerated counts GenerateResetCode calls.
	MetricResetCodeGenerated
	// MetricResetCodeVerifyFailure counts VerifyResetCode mismatches.
	MetricResetCodeVerifyFailure
	// MetricPasswordHashed counts HashPassword calls.
	MetricPasswordHashed
	// MetricPasswordVerifySuccess counts matching VerifyPassword calls.
	MetricPasswordVerifySuccess
	// MetricPasswordVerifyFailure counts non-matching VerifyPassword calls.
	MetricPasswordVerifyFailure
	// MetricPasswordResetRequest counts accepted reset requests.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirmSuccess counts completed resets.
	MetricPasswordResetConfirmSuccess
	// MetricPasswordResetConfirmFailure counts rejected reset confirmations.
	MetricPasswordResetConfirmFailure
	// MetricPasswordResetAttemptsExceeded counts reset codes burned by the attempt cap.
	MetricPasswordResetAttemptsExceeded
	// MetricRateLimitHit counts throttled operations.
	MetricRateLimitHit
	// MetricPasskeyRegistrationStarted counts BeginPasskeyRegistration calls.
	MetricPasskeyRegistrationStarted
	// MetricPasskeyRegistrationSuccess counts verified attestations.
	MetricPasskeyRegistrationSuccess
	// MetricPasskeyRegistrationFailure counts rejected attestations.
	MetricPasskeyRegistrationFailure
	// MetricPasskeyAuthenticationStarted counts BeginPasskeyAuthentication calls.
	MetricPasskeyAuthenticationStarted
	// MetricPasskeyAuthenticationSuccess counts verified assertions.
	MetricPasskeyAuthenticationSuccess
	// MetricPasskeyAuthenticationFailure counts rejected assertions.
	MetricPasskeyAuthenticationFailure
	// MetricPasskeyCloneWarning counts assertions whose sign counter did not advance.
	MetricPasskeyCloneWarning
	// MetricChallengeReplay counts completions presenting an unknown, expired, or used challenge.
	MetricChallengeReplay
	// MetricChallengesSwept counts challenges removed by ClearExpiredChallenges.
	MetricChallengesSwept
	// MetricValidateLatency is the ValidateToken latency histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free Engine counters. Each counter sits on its own cache line.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets are
// non-cumulative and use the bounds 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters that record only when cfg.Enabled is set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricValidateLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
//
// Snapshot is safe to call concurrently with Inc and Observe; counters are read
// individually, so the snapshot is not a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
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
