package authgate

import "sync/atomic"

// MetricID indexes the lock-free counter array kept by [Metrics].
type MetricID uint16

const (
	// MetricTokensIssued counts successful IssueSessionTokens calls.
	MetricTokensIssued MetricID = iota
	// MetricTokensRotated counts successful Rotate calls.
	MetricTokensRotated
	// MetricAuthorizeSuccess counts access tokens that authorized.
	MetricAuthorizeSuccess
	// MetricAuthorizeExpired counts authorizations rejected on expiry.
	MetricAuthorizeExpired
	// MetricAuthorizeInvalid counts authorizations rejected on signature or structure.
	MetricAuthorizeInvalid
	// MetricAuthorizeRevoked counts authorizations rejected by the revocation ledger.
	MetricAuthorizeRevoked
	// MetricSessionRevoked counts single-session revocations.
	MetricSessionRevoked
	// MetricSessionRevokedAll counts bulk revocations.
	MetricSessionRevokedAll
	// MetricCapacityRejected counts registrations rejected at the session cap.
	MetricCapacityRejected
	// MetricRateLimitHit counts gate decisions that exceeded the budget.
	MetricRateLimitHit
	// MetricBackendError counts store failures on verified or gated paths.
	MetricBackendError
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free counter recorder. All methods are safe for
// concurrent use and are no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters, consumed by
// the exporters under metrics/export.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a recorder honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the recorder counts at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
