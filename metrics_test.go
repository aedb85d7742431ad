package authcore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledDropsUpdates(t *testing.T) {
	for _, m := range []*Metrics{nil, NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})} {
		m.Inc(MetricLoginSuccess)
		m.Observe(MetricLoginLatency, time.Millisecond)

		assert.False(t, m.Enabled())
		assert.False(t, m.LatencyEnabled())
		assert.Zero(t, m.Value(MetricLoginSuccess))
		snap := m.Snapshot()
		assert.Empty(t, snap.Counters)
		assert.Empty(t, snap.Histograms)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, perWorker = 16, 2500
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				m.Inc(MetricLoginFailure)
				m.Inc(MetricAccountLocked)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), m.Value(MetricLoginFailure))
	assert.Equal(t, uint64(workers*perWorker), m.Value(MetricAccountLocked))
	assert.Zero(t, m.Value(MetricLoginSuccess))
}

func TestLatencyBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, latencyBucket(tc.d), tc.d.String())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricAccountLocked)
	m.Inc(MetricAccountLocked)
	m.Inc(MetricLoginLatency)
	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricLoginLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	assert.Len(t, snap.Counters, counterCount)
	assert.Equal(t, uint64(1), snap.Counters[MetricLoginSuccess])
	assert.Equal(t, uint64(2), snap.Counters[MetricAccountLocked])
	assert.NotContains(t, snap.Counters, MetricLoginLatency)

	buckets := snap.Histograms[MetricLoginLatency]
	require.Len(t, buckets, histBucketCount)
	assert.Equal(t, []uint64{1, 0, 0, 0, 0, 0, 0, 1}, buckets)

	// Snapshots are copies.
	buckets[0] = 99
	assert.Equal(t, uint64(1), m.Snapshot().Histograms[MetricLoginLatency][0])
}

func TestMetricsSnapshotWithoutLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricLoginLatency, time.Millisecond)

	assert.True(t, m.Enabled())
	assert.False(t, m.LatencyEnabled())
	assert.Empty(t, m.Snapshot().Histograms)
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}
