// Package metrics builds the Prometheus collectors of the template cache.
// Every constructor takes an explicit prometheus.Registerer so that a
// discarded registry takes its metrics with it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CompileBuckets covers template compile times from 50µs to about 1s.
var CompileBuckets = prometheus.ExponentialBuckets(0.00005, 4, 8)

func NewCounter(registry prometheus.Registerer, name, help string) prometheus.Counter {
	return promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func NewHistogramWithBuckets(registry prometheus.Registerer, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	})
}

func NewGauge(registry prometheus.Registerer, name, help string) prometheus.Gauge {
	return promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

// Cache holds the collectors updated by the compiled-template cache.
type Cache struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	Compiles        prometheus.Counter
	Evictions       prometheus.Counter
	Entries         prometheus.Gauge
	CompileDuration prometheus.Histogram
}

// NewCache registers the cache collectors with registry. A nil registry
// yields unregistered collectors.
func NewCache(registry prometheus.Registerer) *Cache {
	return &Cache{
		Hits:            NewCounter(registry, "hbs_cache_hits_total", "Template lookups served from the cache."),
		Misses:          NewCounter(registry, "hbs_cache_misses_total", "Template lookups that required a compile."),
		Compiles:        NewCounter(registry, "hbs_cache_compiles_total", "Templates compiled, including reloads."),
		Evictions:       NewCounter(registry, "hbs_cache_evictions_total", "Templates removed from the cache."),
		Entries:         NewGauge(registry, "hbs_cache_entries", "Templates currently cached."),
		CompileDuration: NewHistogramWithBuckets(registry, "hbs_compile_duration_seconds", "Time spent compiling templates.", CompileBuckets),
	}
}
