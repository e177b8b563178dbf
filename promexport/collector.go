// Package promexport exposes arenaskip map statistics as Prometheus metrics.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/metailurini/arenaskip"
)

// StatsSource is anything that can report a stats snapshot, such as a Map or
// a Set.
type StatsSource interface {
	Stats() arenaskip.Stats
}

type metricDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(arenaskip.Stats) float64
}

// Collector implements prometheus.Collector over a StatsSource. Values are
// read from a fresh snapshot on every scrape.
type Collector struct {
	source  StatsSource
	metrics []metricDesc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector whose metrics carry a constant "list"
// label set to name.
func NewCollector(namespace, name string, source StatsSource) *Collector {
	labels := prometheus.Labels{"list": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "skiplist", metric), help, nil, labels)
	}
	gauge := func(metric, help string, f func(arenaskip.Stats) float64) metricDesc {
		return metricDesc{desc: desc(metric, help), kind: prometheus.GaugeValue, value: f}
	}
	counter := func(metric, help string, f func(arenaskip.Stats) float64) metricDesc {
		return metricDesc{desc: desc(metric, help), kind: prometheus.CounterValue, value: f}
	}

	return &Collector{
		source: source,
		metrics: []metricDesc{
			gauge("entries", "Number of live entries.",
				func(s arenaskip.Stats) float64 { return float64(s.Len) }),
			gauge("level", "Highest level currently in use.",
				func(s arenaskip.Stats) float64 { return float64(s.Level) }),
			gauge("max_level", "Configured level cap.",
				func(s arenaskip.Stats) float64 { return float64(s.MaxLevel) }),
			counter("insert_cas_retries_total", "Link CAS attempts lost by inserts.",
				func(s arenaskip.Stats) float64 { return float64(s.InsertCASRetries) }),
			counter("inserts_total", "Inserts that published a new node.",
				func(s arenaskip.Stats) float64 { return float64(s.InsertCASSuccesses) }),
			counter("snips_total", "Marked nodes physically unlinked at some level.",
				func(s arenaskip.Stats) float64 { return float64(s.Snips) }),
			counter("search_restarts_total", "Searches restarted from the header.",
				func(s arenaskip.Stats) float64 { return float64(s.Restarts) }),
			counter("finger_hits_total", "Searches that started from the worker finger.",
				func(s arenaskip.Stats) float64 { return float64(s.FingerHits) }),
			counter("finger_misses_total", "Searches whose finger was unusable.",
				func(s arenaskip.Stats) float64 { return float64(s.FingerMisses) }),
			gauge("arena_blocks", "Arena blocks carved.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.Blocks) }),
			gauge("arena_slots", "Node slots carved.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.Slots) }),
			gauge("arena_live_slots", "Node slots currently allocated.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.Live) }),
			counter("arena_cache_hits_total", "Allocations served by a worker cache.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.CacheHits) }),
			counter("arena_stack_pops_total", "Allocations served by the shared free stack.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.StackPops) }),
			counter("arena_slow_paths_total", "Allocations that took the mutex slow path.",
				func(s arenaskip.Stats) float64 { return float64(s.Pool.SlowPaths) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}
