package authcore

import "sync/atomic"

// MetricID identifies one internal counter.
type MetricID uint16

const (
	MetricSignInSuccess MetricID = iota
	MetricSignInFailure
	MetricAccountLocked
	MetricAccountInactive
	MetricMFARequired
	MetricMFATrustedBypass
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricTOTPReplay
	MetricSMSSent
	MetricSMSSendFailed
	MetricSMSRateLimited
	MetricSMSCooldown
	MetricSMSSuccess
	MetricSMSFailure
	MetricMFAExpired
	MetricMFAAttemptsExceeded
	MetricSessionCreated
	MetricSessionInvalidated
	MetricSessionEvicted
	MetricDeviceRemembered
	MetricDeviceRevoked
	MetricDeviceEvicted
	MetricTokenIssued
	MetricKeyRotated
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size set of atomic counters, one per MetricID.
// Counters are padded to a cache line apiece to avoid false sharing under
// concurrent flows.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

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
