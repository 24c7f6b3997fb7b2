// Package metrics provides Prometheus metrics for the ingestion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "athletegraph"
	defaultSubsystem = "ingest"
)

// Manager owns every Prometheus collector of the ingestion service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline
	rowsValidated    prometheus.Counter
	rowsRejected     *prometheus.CounterVec
	recordsWritten   prometheus.Counter
	writeFailures    *prometheus.CounterVec
	writeLatency     prometheus.Histogram
	mappingsInferred prometheus.Counter
	ontologyUnits    prometheus.Gauge

	// Gateway
	authFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rowsValidated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_validated_total",
		Help:      "Rows that passed validation and became metric records",
	})

	m.rowsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_rejected_total",
		Help:      "Rows rejected by the validator, by reason",
	}, []string{"reason"})

	m.recordsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_written_total",
		Help:      "Metric records committed to the graph store",
	})

	m.writeFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "record_write_failures_total",
		Help:      "Metric records whose store transaction failed, by kind",
	}, []string{"kind"})

	m.writeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "record_write_latency_milliseconds",
		Help:      "Latency of one record upsert transaction in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.mappingsInferred = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mappings_inferred_total",
		Help:      "Field mappings inferred and persisted for a new source",
	})

	m.ontologyUnits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ontology_units",
		Help:      "Number of unit symbols in the loaded ontology",
	})

	m.authFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auth_failures_total",
		Help:      "Requests rejected because the API key did not resolve to a coach",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "HTTP error responses by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})
}

// RecordRowValidated increments the validated rows counter.
func RecordRowValidated() {
	globalManager.rowsValidated.Inc()
}

// RecordRowRejected increments the rejected rows counter for reason.
func RecordRowRejected(reason string) {
	globalManager.rowsRejected.WithLabelValues(reason).Inc()
}

// RecordRecordWritten increments the written records counter.
func RecordRecordWritten() {
	globalManager.recordsWritten.Inc()
}

// RecordWriteFailure increments the write failure counter for kind.
func RecordWriteFailure(kind string) {
	globalManager.writeFailures.WithLabelValues(kind).Inc()
}

// RecordWriteLatency observes one upsert transaction.
func RecordWriteLatency(d time.Duration) {
	globalManager.writeLatency.Observe(float64(d.Microseconds()) / 1000)
}

// RecordMappingInferred increments the inferred mappings counter.
func RecordMappingInferred() {
	globalManager.mappingsInferred.Inc()
}

// UpdateOntologyUnits sets the loaded unit count.
func UpdateOntologyUnits(count int) {
	globalManager.ontologyUnits.Set(float64(count))
}

// RecordAuthFailure increments the authentication failure counter.
func RecordAuthFailure() {
	globalManager.authFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
