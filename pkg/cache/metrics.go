package cache

import (
	"sync"
	"time"
)

// responseSamples is the size of the Get response-time window.
const responseSamples = 100

// InvalidationStrategy selects how Invalidate resolves keys.
type InvalidationStrategy string

const (
	InvalidatePattern    InvalidationStrategy = "pattern"
	InvalidateTag        InvalidationStrategy = "tag"
	InvalidateDependency InvalidationStrategy = "dependency"
	InvalidateManual     InvalidationStrategy = "manual"
)

// Metrics is a point-in-time snapshot of the Service counters.
// Rates are percentages.
type Metrics struct {
	InvalidationsByStrategy map[InvalidationStrategy]int64 `json:"invalidationsByStrategy"`
	TotalHits               int64                          `json:"totalHits"`
	TotalMisses             int64                          `json:"totalMisses"`
	HitRate                 float64                        `json:"hitRate"`
	MissRate                float64                        `json:"missRate"`
	TotalSets               int64                          `json:"totalSets"`
	TotalDeletes            int64                          `json:"totalDeletes"`
	TotalInvalidations      int64                          `json:"totalInvalidations"`
	AverageResponseTime     time.Duration                  `json:"averageResponseTime"`
	MemoryUsage             int64                          `json:"memoryUsage"`
	Evictions               int64                          `json:"evictions"`
}

// MemoryUsage reports the estimated footprint of tracked entries.
// UsagePercent is informational; eviction is driven by entry count only.
type MemoryUsage struct {
	EntryCount       int     `json:"entryCount"`
	TotalSize        int64   `json:"totalSize"`
	AverageEntrySize float64 `json:"averageEntrySize"`
	MaxMemory        int64   `json:"maxMemory"`
	UsagePercent     float64 `json:"usagePercent"`
}

// metrics collects counters and a ring buffer of response-time samples.
type metrics struct {
	byStrategy    map[InvalidationStrategy]int64
	samples       [responseSamples]time.Duration
	hits          int64
	misses        int64
	sets          int64
	deletes       int64
	invalidations int64
	evictions     int64
	memory        int64
	next          int
	filled        int
	mu            sync.Mutex
}

func newMetrics() *metrics {
	return &metrics{byStrategy: make(map[InvalidationStrategy]int64)}
}

func (m *metrics) hit(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.sample(d)
}

func (m *metrics) miss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

// sample appends to the ring buffer. Caller must hold the mutex.
func (m *metrics) sample(d time.Duration) {
	m.samples[m.next] = d
	m.next = (m.next + 1) % responseSamples
	m.filled = min(m.filled+1, responseSamples)
}

func (m *metrics) set(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.memory += size
}

func (m *metrics) delete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
}

func (m *metrics) evicted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions += int64(n)
}

func (m *metrics) invalidated(s InvalidationStrategy, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations += int64(n)
	m.byStrategy[s] += int64(n)
}

func (m *metrics) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Metrics{
		InvalidationsByStrategy: make(map[InvalidationStrategy]int64, len(m.byStrategy)),
		TotalHits:               m.hits,
		TotalMisses:             m.misses,
		TotalSets:               m.sets,
		TotalDeletes:            m.deletes,
		TotalInvalidations:      m.invalidations,
		MemoryUsage:             m.memory,
		Evictions:               m.evictions,
	}
	for k, v := range m.byStrategy {
		out.InvalidationsByStrategy[k] = v
	}

	if total := m.hits + m.misses; total > 0 {
		out.HitRate = float64(m.hits) / float64(total) * 100
		out.MissRate = float64(m.misses) / float64(total) * 100
	}

	if m.filled > 0 {
		var sum time.Duration
		for i := range m.filled {
			sum += m.samples[i]
		}
		out.AverageResponseTime = sum / time.Duration(m.filled)
	}

	return out
}

func (m *metrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.byStrategy)
	m.samples = [responseSamples]time.Duration{}
	m.hits, m.misses, m.sets, m.deletes = 0, 0, 0, 0
	m.invalidations, m.evictions, m.memory = 0, 0, 0
	m.next, m.filled = 0, 0
}
