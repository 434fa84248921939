package authcore

import "sync/atomic"

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication core.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication core.
	MetricLoginFailure
	// MetricSessionRevalidated is an exported constant or variable used by the authentication core.
	MetricSessionRevalidated
	// MetricSessionSuperseded is an exported constant or variable used by the authentication core.
	MetricSessionSuperseded
	// MetricAccountLocked is an exported constant or variable used by the authentication core.
	MetricAccountLocked
	// MetricPasswordExpired is an exported constant or variable used by the authentication core.
	MetricPasswordExpired
	// MetricPasswordChangeSuccess is an exported constant or variable used by the authentication core.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeRejected is an exported constant or variable used by the authentication core.
	MetricPasswordChangeRejected
	// MetricTFACodeIssued is an exported constant or variable used by the authentication core.
	MetricTFACodeIssued
	// MetricTFACodeVerified is an exported constant or variable used by the authentication core.
	MetricTFACodeVerified
	// MetricTFACodeRejected is an exported constant or variable used by the authentication core.
	MetricTFACodeRejected
	// MetricTFARateLimited is an exported constant or variable used by the authentication core.
	MetricTFARateLimited
	// MetricTOTPVerified is an exported constant or variable used by the authentication core.
	MetricTOTPVerified
	// MetricTOTPRejected is an exported constant or variable used by the authentication core.
	MetricTOTPRejected
	// MetricAccountVerified is an exported constant or variable used by the authentication core.
	MetricAccountVerified
	// MetricLoginProvisioned is an exported constant or variable used by the authentication core.
	MetricLoginProvisioned
	// MetricLoginReset is an exported constant or variable used by the authentication core.
	MetricLoginReset
	// MetricTenantResolved is an exported constant or variable used by the authentication core.
	MetricTenantResolved
	// MetricTenantMissing is an exported constant or variable used by the authentication core.
	MetricTenantMissing
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether the instance records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
