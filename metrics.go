package efficio

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

// Engine metric identifiers. The exporters in metrics/export name them.
const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterUsernameTaken
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLogout
	MetricSessionReissued
	MetricSessionsRevoked
	MetricAccountDeleted
	MetricUnauthorized
	MetricInternalError
	MetricHashLatency
	metricIDCount
)

// HashLatencyBounds are the finite upper bounds of the hash latency
// histogram. Samples above the last bound land in a final +Inf bucket.
// Argon2 with production parameters usually lands between 50ms and 500ms.
var HashLatencyBounds = [...]time.Duration{
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

const (
	histBucketCount = len(HashLatencyBounds) + 1
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. The zero value and nil are
// disabled and safe to call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	hashLatency   metricHistogram
}

// HistogramSnapshot is a copy of one latency histogram.
type HistogramSnapshot struct {
	// Bounds are the finite upper bounds; Counts has one more entry for +Inf.
	Bounds []time.Duration
	Counts []uint64
	Sum    time.Duration
}

// Count returns the number of samples.
func (h HistogramSnapshot) Count() uint64 {
	var n uint64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Cumulative returns the running totals of Counts, the shape Prometheus
// buckets use.
func (h HistogramSnapshot) Cumulative() []uint64 {
	out := make([]uint64, len(h.Counts))
	var running uint64
	for i, c := range h.Counts {
		running += c
		out[i] = running
	}
	return out
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

// NewMetrics creates a [Metrics] set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
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

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) add(id MetricID, n int) {
	if m == nil || !m.enabled || id >= metricIDCount || n <= 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, uint64(n))
}

// Observe records d in the histogram id. Only [MetricHashLatency] has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricHashLatency {
		return
	}

	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&m.hashLatency.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.hashLatency.sumNanos, uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the hash latency histogram when
// latency histograms are enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID]HistogramSnapshot{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID]HistogramSnapshot, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricHashLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		h := HistogramSnapshot{
			Bounds: append([]time.Duration(nil), HashLatencyBounds[:]...),
			Counts: make([]uint64, histBucketCount),
			Sum:    time.Duration(atomic.LoadUint64(&m.hashLatency.sumNanos)),
		}
		for i := range h.Counts {
			h.Counts[i] = atomic.LoadUint64(&m.hashLatency.buckets[i])
		}
		s.Histograms[MetricHashLatency] = h
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HashLatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(HashLatencyBounds)
}
