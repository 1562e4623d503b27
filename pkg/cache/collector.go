package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a Service's metrics and memory usage to Prometheus.
// Values are read from the Service on every scrape.
type Collector struct {
	svc *Service

	hits          *prometheus.Desc
	misses        *prometheus.Desc
	hitRate       *prometheus.Desc
	sets          *prometheus.Desc
	deletes       *prometheus.Desc
	invalidations *prometheus.Desc
	evictions     *prometheus.Desc
	responseTime  *prometheus.Desc
	entries       *prometheus.Desc
	bytes         *prometheus.Desc
	usage         *prometheus.Desc
}

// NewCollector creates a Collector for svc under namespace.
//
// Example:
//
//	prometheus.MustRegister(cache.NewCollector(svc, "ihsan"))
func NewCollector(svc *Service, namespace string) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, labels, nil)
	}

	return &Collector{
		svc:           svc,
		hits:          desc("hits_total", "Cache hits."),
		misses:        desc("misses_total", "Cache misses."),
		hitRate:       desc("hit_rate_percent", "Hits as a percentage of lookups."),
		sets:          desc("sets_total", "Entries written."),
		deletes:       desc("deletes_total", "Entries deleted."),
		invalidations: desc("invalidations_total", "Entries removed by invalidation.", "strategy"),
		evictions:     desc("evictions_total", "Entries evicted to enforce capacity."),
		responseTime:  desc("response_time_seconds", "Average store response time over the recent window."),
		entries:       desc("entries", "Live entries in the store."),
		bytes:         desc("tracked_bytes", "Estimated size of tracked entries."),
		usage:         desc("memory_usage_percent", "Tracked bytes as a percentage of the memory budget."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.hitRate, c.sets, c.deletes, c.invalidations,
		c.evictions, c.responseTime, c.entries, c.bytes, c.usage,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.svc.Metrics()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(m.TotalHits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(m.TotalMisses))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, m.HitRate)
	ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(m.TotalSets))
	ch <- prometheus.MustNewConstMetric(c.deletes, prometheus.CounterValue, float64(m.TotalDeletes))
	for strategy, n := range m.InvalidationsByStrategy {
		ch <- prometheus.MustNewConstMetric(c.invalidations, prometheus.CounterValue, float64(n), string(strategy))
	}
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(m.Evictions))
	ch <- prometheus.MustNewConstMetric(c.responseTime, prometheus.GaugeValue, m.AverageResponseTime.Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	usage, err := c.svc.MemoryUsage(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.entries, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(usage.EntryCount))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(usage.TotalSize))
	ch <- prometheus.MustNewConstMetric(c.usage, prometheus.GaugeValue, usage.UsagePercent)
}

var _ prometheus.Collector = (*Collector)(nil)
