// Package metrics holds the Prometheus collectors for the report pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of pipeline observations. A nil *Metrics is a valid no-op Recorder.
type Recorder interface {
	RecordFetch(status int, duration time.Duration)
	RecordCacheLookup(hit bool)
	RecordDroppedRows(n int)
	RecordReport(outcome string, duration time.Duration)
}

// Metrics registers its collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	fetchesTotal   *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	droppedRows    prometheus.Counter
	reportsTotal   *prometheus.CounterVec
	reportDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spending_upstream_fetches_total",
				Help: "Total number of upstream spending API calls by HTTP status",
			},
			[]string{"status"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spending_upstream_fetch_duration_seconds",
				Help:    "Upstream spending API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spending_cache_lookups_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"},
		),
		droppedRows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spending_dropped_rows_total",
				Help: "Total number of records dropped for missing or malformed fields",
			},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spending_reports_total",
				Help: "Total number of report generations by outcome",
			},
			[]string{"outcome"},
		),
		reportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spending_report_duration_seconds",
				Help:    "End-to-end report generation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch counts an upstream call. status 0 means the request never got a response.
func (m *Metrics) RecordFetch(status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.fetchesTotal.WithLabelValues(label).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDroppedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedRows.Add(float64(n))
}

func (m *Metrics) RecordReport(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(outcome).Inc()
	m.reportDuration.Observe(duration.Seconds())
}
