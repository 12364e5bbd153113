package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/playon/internal/cache"
)

// StatsSource is anything that can report lookup cache statistics.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheCollector implements prometheus.Collector for the lookup cache.
// It reads the cache counters lazily on each scrape.
type CacheCollector struct {
	source StatsSource

	entries *prometheus.Desc
	hits    *prometheus.Desc
	misses  *prometheus.Desc
}

// NewCacheCollector creates a collector that scrapes cache stats on demand.
func NewCacheCollector(source StatsSource) *CacheCollector {
	return &CacheCollector{
		source: source,

		entries: prometheus.NewDesc(
			"playon_cache_entries",
			"Entries stored in the lookup cache, expired ones included.",
			nil, nil,
		),
		hits: prometheus.NewDesc(
			"playon_cache_hits_total",
			"Lookups answered from the cache.",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			"playon_cache_misses_total",
			"Lookups that had to resolve against the catalog.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
}
