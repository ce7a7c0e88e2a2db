// Package metrics implements a Prometheus-backed engine.MetricsCollector,
// grounded on the retrieved pack's pkg/metrics/metrics.go (same
// promauto-driven counter/histogram/gauge pattern), retargeted from HTTP
// request metrics to the engine's index operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements engine.MetricsCollector against a private
// prometheus.Registry, so constructing more than one (e.g. one per test)
// never panics on duplicate registration the way registering against the
// global default registry would.
type PrometheusCollector struct {
	Registry *prometheus.Registry

	searchDuration prometheus.Histogram
	searchFound    prometheus.Histogram
	searchErrors   *prometheus.CounterVec

	addDuration prometheus.Histogram
	addTotal    prometheus.Counter
	addErrors   *prometheus.CounterVec

	deleteDuration prometheus.Histogram
	deleteErrors   *prometheus.CounterVec

	refineDuration prometheus.Histogram
	refineDropped  prometheus.Counter
	refineErrors   *prometheus.CounterVec

	compactionDuration prometheus.Histogram
	compactionErrors   *prometheus.CounterVec

	vectorsTotal prometheus.Gauge
}

// NewPrometheusCollector builds a collector with all metrics named under
// namespace (e.g. "hybridann"), registered against a fresh registry.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	durationBuckets := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	return &PrometheusCollector{
		Registry: reg,

		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "duration_seconds",
			Help: "Duration of Search calls.", Buckets: durationBuckets,
		}),
		searchFound: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "found_total",
			Help: "Number of results returned per Search call.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		}),
		searchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "errors_total",
			Help: "Count of Search calls that returned an error, by error string.",
		}, []string{"error"}),

		addDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "add", Name: "duration_seconds",
			Help: "Duration of Add calls.", Buckets: durationBuckets,
		}),
		addTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "add", Name: "vectors_total",
			Help: "Count of vectors appended via Add (including an Add that delegates to Build).",
		}),
		addErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "add", Name: "errors_total",
			Help: "Count of Add calls that returned an error, by error string.",
		}, []string{"error"}),

		deleteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "delete", Name: "duration_seconds",
			Help: "Duration of Delete calls.", Buckets: durationBuckets,
		}),
		deleteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delete", Name: "errors_total",
			Help: "Count of Delete calls that returned an error, by error string.",
		}, []string{"error"}),

		refineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "refine", Name: "duration_seconds",
			Help: "Duration of Refine calls.", Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		refineDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "refine", Name: "dropped_total",
			Help: "Count of tombstoned rows reclaimed by Refine.",
		}),
		refineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "refine", Name: "errors_total",
			Help: "Count of Refine calls that returned an error, by error string.",
		}, []string{"error"}),

		compactionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tree_rebuild", Name: "duration_seconds",
			Help: "Duration of the background KD-forest rebuild.", Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		compactionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tree_rebuild", Name: "errors_total",
			Help: "Count of background tree rebuilds that failed, by error string.",
		}, []string{"error"}),

		vectorsTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vectors_total",
			Help: "Logical row count R as tracked from recorded Add and Refine calls.",
		}),
	}
}

func errLabel(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// RecordSearch implements engine.MetricsCollector.
func (c *PrometheusCollector) RecordSearch(duration time.Duration, checkedLeaves, found int, err error) {
	c.searchDuration.Observe(duration.Seconds())
	c.searchFound.Observe(float64(found))
	if err != nil {
		c.searchErrors.WithLabelValues(errLabel(err)).Inc()
	}
}

// RecordAdd implements engine.MetricsCollector.
func (c *PrometheusCollector) RecordAdd(duration time.Duration, n int, err error) {
	c.addDuration.Observe(duration.Seconds())
	if err != nil {
		c.addErrors.WithLabelValues(errLabel(err)).Inc()
		return
	}
	c.addTotal.Add(float64(n))
	c.vectorsTotal.Add(float64(n))
}

// RecordDelete implements engine.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(duration time.Duration, err error) {
	c.deleteDuration.Observe(duration.Seconds())
	if err != nil {
		c.deleteErrors.WithLabelValues(errLabel(err)).Inc()
	}
}

// RecordRefine implements engine.MetricsCollector.
func (c *PrometheusCollector) RecordRefine(duration time.Duration, oldR, newR int, err error) {
	c.refineDuration.Observe(duration.Seconds())
	if err != nil {
		c.refineErrors.WithLabelValues(errLabel(err)).Inc()
		return
	}
	c.refineDropped.Add(float64(oldR - newR))
	c.vectorsTotal.Set(float64(newR))
}

// RecordCompaction implements engine.MetricsCollector.
func (c *PrometheusCollector) RecordCompaction(duration time.Duration, r int, err error) {
	c.compactionDuration.Observe(duration.Seconds())
	if err != nil {
		c.compactionErrors.WithLabelValues(errLabel(err)).Inc()
	}
}
