package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricTwoFactorRequired
	MetricTwoFactorFailure
	MetricAccountLocked
	MetricLockReleased
	MetricBackupCodeUsed
	MetricBackupCodeRegenerated
	MetricTwoFactorSetup
	MetricTwoFactorEnabled
	MetricTwoFactorDisabled
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordChangeReuseRejected
	MetricPasswordChangeWeak
	MetricSessionCreated
	MetricSessionRevoked
	MetricAccountStatusChanged
	MetricNotifierFailure
	// MetricLoginLatency is the only histogram. Every ID below it is a counter.
	MetricLoginLatency
)

const counterCount = int(MetricLoginLatency)

// latencyBounds are the inclusive upper bounds of the login latency buckets. A
// final +Inf bucket follows them.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// counter sits alone on a cache line so hot counters do not false-share.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the login latency histogram.
// A nil or disabled *Metrics drops every update.
type Metrics struct {
	enabled bool
	latency bool

	counters [counterCount]counter
	buckets  [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the engine's metrics. Histogram
// buckets are per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to a counter. Histogram IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || int(id) >= counterCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d for MetricLoginLatency when latency histograms are enabled.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricLoginLatency || !m.LatencyEnabled() {
		return
	}
	m.buckets[latencyBucket(d)].Add(1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || int(id) >= counterCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for i := range m.counters {
		snap.Counters[MetricID(i)] = m.counters[i].Load()
	}
	if m.latency {
		buckets := make([]uint64, histBucketCount)
		for i := range m.buckets {
			buckets[i] = m.buckets[i].Load()
		}
		snap.Histograms[MetricLoginLatency] = buckets
	}
	return snap
}

// latencyBucket rounds d down to whole milliseconds before comparing, so 5.9ms
// still lands in the 5ms bucket.
func latencyBucket(d time.Duration) int {
	d = d.Truncate(time.Millisecond)
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
