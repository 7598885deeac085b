package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter (and, for latency IDs, one histogram).
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLogout
	MetricRefreshStarted
	MetricRefreshJoined
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshDiscarded
	MetricRestoreAuthenticated
	MetricRestoreUnauthenticated
	MetricFreshTokenHit
	MetricStoreFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricLoginLatency
	MetricRefreshLatency
	MetricIDCount
)

const (
	HistBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [HistBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config selects which parts of the metrics system are live.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds the counters and histograms. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// IsLatency reports whether id carries a histogram.
func IsLatency(id MetricID) bool {
	return id == MetricLoginLatency || id == MetricRefreshLatency
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Non-latency IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !IsLatency(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if IsLatency(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricRefreshLatency} {
			buckets := make([]uint64, HistBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
