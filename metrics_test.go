package efficio

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.add(MetricSessionsRevoked, 4)

	if got := m.Value(MetricLoginSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := m.Value(MetricSessionsRevoked); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRegisterSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRegisterSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		3 * time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricHashLatency, d)
	}

	snap := m.Snapshot()
	h := snap.Histograms[MetricHashLatency]
	if len(h.Counts) != 8 || len(h.Bounds) != 7 {
		t.Fatalf("expected 7 bounds and 8 buckets, got %d and %d", len(h.Bounds), len(h.Counts))
	}

	for i, v := range h.Counts {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if h.Count() != 8 {
		t.Fatalf("expected 8 samples, got %d", h.Count())
	}
	if want := 4935 * time.Millisecond; h.Sum != want {
		t.Fatalf("sum = %v, want %v", h.Sum, want)
	}
	if got := h.Cumulative(); got[0] != 1 || got[7] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", got)
	}
}

func TestMetricsHistogramBoundaryIsInclusive(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricHashLatency, 10*time.Millisecond+time.Microsecond)
	m.Observe(MetricHashLatency, -time.Second)

	h := m.Snapshot().Histograms[MetricHashLatency]
	if h.Counts[0] != 1 || h.Counts[1] != 1 {
		t.Fatalf("unexpected buckets %v", h.Counts)
	}
	if h.Sum != 10*time.Millisecond+time.Microsecond {
		t.Fatalf("negative sample leaked into sum: %v", h.Sum)
	}

	// Snapshots own their bounds.
	h.Bounds[0] = time.Hour
	if HashLatencyBounds[0] != 10*time.Millisecond {
		t.Fatal("snapshot aliased HashLatencyBounds")
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("expected no histogram for a counter id")
	}
	if _, ok := snap.Counters[MetricHashLatency]; ok {
		t.Fatal("expected the histogram id to be absent from counters")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricHashLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected MetricLoginFailure=2 got %d", snap.Counters[MetricLoginFailure])
	}
	h := snap.Histograms[MetricHashLatency]
	if len(h.Counts) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if h.Counts[0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", h.Counts[0])
	}
	if h.Sum != 2*time.Millisecond {
		t.Fatalf("expected sum 2ms got %v", h.Sum)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricHashLatency, time.Millisecond)
	if m.Value(MetricLogout) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must be inert")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}
