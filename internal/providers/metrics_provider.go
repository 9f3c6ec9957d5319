package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hed/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	ObserveExportDuration(status string, duration time.Duration)
	AddRecordsExported(category string, count int)
	AddRecordsDropped(category string, count int)
	IncSinkFailures(category, sink string)
	SetLastSuccessfulExport(at time.Time)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	exportDuration      *prometheus.HistogramVec
	recordsExported     *prometheus.CounterVec
	recordsDropped      *prometheus.CounterVec
	sinkFailures        *prometheus.CounterVec
	lastSuccess         prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveExportDuration(status string, duration time.Duration) {
	m.exportDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *MetricsProvider) AddRecordsExported(category string, count int) {
	m.recordsExported.WithLabelValues(category).Add(float64(count))
}

func (m *MetricsProvider) AddRecordsDropped(category string, count int) {
	m.recordsDropped.WithLabelValues(category).Add(float64(count))
}

func (m *MetricsProvider) IncSinkFailures(category, sink string) {
	m.sinkFailures.WithLabelValues(category, sink).Inc()
}

func (m *MetricsProvider) SetLastSuccessfulExport(at time.Time) {
	m.lastSuccess.Set(float64(at.Unix()))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hed_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hed_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hed_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hed_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hed_persistence_duration_seconds",
			Help:    "Duration of manifest ledger persistence in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		exportDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hed_export_duration_seconds",
			Help:    "Duration of export runs in seconds by outcome",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),

		recordsExported: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hed_records_exported_total",
			Help: "Anonymized records exported per category",
		}, []string{"category"}),

		recordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hed_records_dropped_total",
			Help: "Malformed records dropped during anonymization per category",
		}, []string{"category"}),

		sinkFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hed_sink_failures_total",
			Help: "Failed archive or warehouse writes per category",
		}, []string{"category", "sink"}),

		lastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hed_last_successful_export_timestamp_seconds",
			Help: "Unix time of the last fully successful export run",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) ObserveExportDuration(_ string, _ time.Duration)  {}
func (n *noopMetrics) AddRecordsExported(_ string, _ int)               {}
func (n *noopMetrics) AddRecordsDropped(_ string, _ int)                {}
func (n *noopMetrics) IncSinkFailures(_, _ string)                      {}
func (n *noopMetrics) SetLastSuccessfulExport(_ time.Time)              {}
