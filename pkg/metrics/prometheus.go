// Package metrics provides Prometheus metrics for the harmony score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the harmony service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Edit outcomes - the core business signal
	editsTotal    *prometheus.CounterVec
	editsRejected *prometheus.CounterVec
	mergedNotes   prometheus.Counter

	// Gate metrics - cooldown consumption and lost races
	gateConsumes         prometheus.Counter
	gateConsumeConflicts prometheus.Counter

	// Score state
	notesTotal    prometheus.Gauge
	measuresTotal prometheus.Gauge
	usersTotal    prometheus.Gauge

	// Store performance
	storeMutationLatency prometheus.Histogram

	// Auth
	authLogins   prometheus.Counter
	authFailures prometheus.Counter

	// HTTP performance
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Write-back journal
	writebackQueueSize    prometheus.Gauge
	writebackQueueCap     prometheus.Gauge
	writebackEnqueues     prometheus.Counter
	writebackSyncFlushes  prometheus.Counter
	writebackErrors       prometheus.Counter
	writebackFlushLatency prometheus.Histogram

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "harmony",
		subsystem:        "score",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.editsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "edits_total",
			Help:      "Total number of committed edits by operation",
		},
		[]string{"operation"},
	)

	m.editsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "edits_rejected_total",
			Help:      "Total number of rejected edits by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	m.mergedNotes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "merged_notes_total",
		Help:      "Total number of notes removed by merge operations",
	})

	m.gateConsumes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gate_consumes_total",
		Help:      "Total number of successful action consumptions",
	})

	m.gateConsumeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gate_consume_conflicts_total",
		Help:      "Total number of consume attempts rejected while cooling",
	})

	m.notesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notes_total",
		Help:      "Current number of notes in the score",
	})

	m.measuresTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "measures_total",
		Help:      "Number of measures in the score",
	})

	m.usersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "users_total",
		Help:      "Number of registered users",
	})

	m.storeMutationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_mutation_latency_milliseconds",
		Help:      "Note store mutation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.authLogins = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auth_logins_total",
		Help:      "Total number of successful logins",
	})

	m.authFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auth_failures_total",
		Help:      "Total number of failed authentication attempts",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.writebackQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_queue_size",
		Help:      "Current size of the persistence write-back queue",
	})

	m.writebackQueueCap = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_queue_capacity",
		Help:      "Capacity of the persistence write-back queue",
	})

	m.writebackEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_enqueues_total",
		Help:      "Total number of journal entries enqueued for persistence",
	})

	m.writebackSyncFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_sync_flushes_total",
		Help:      "Total number of journal entries flushed synchronously under backpressure",
	})

	m.writebackErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_errors_total",
		Help:      "Total number of persistence write failures",
	})

	m.writebackFlushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writeback_flush_latency_milliseconds",
		Help:      "Persistence flush latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})
}

// Package-level helpers operating on the global manager.

func RecordEdit(operation string) {
	globalManager.editsTotal.WithLabelValues(operation).Inc()
}

func RecordEditRejected(operation, reason string) {
	globalManager.editsRejected.WithLabelValues(operation, reason).Inc()
}

func RecordMergedNotes(count int) {
	globalManager.mergedNotes.Add(float64(count))
}

func RecordGateConsume() {
	globalManager.gateConsumes.Inc()
}

func RecordGateConsumeConflict() {
	globalManager.gateConsumeConflicts.Inc()
}

func UpdateNotesTotal(count int) {
	globalManager.notesTotal.Set(float64(count))
}

func UpdateMeasuresTotal(count int) {
	globalManager.measuresTotal.Set(float64(count))
}

func UpdateUsersTotal(count int) {
	globalManager.usersTotal.Set(float64(count))
}

func RecordStoreMutationLatency(latencyMs float64) {
	globalManager.storeMutationLatency.Observe(latencyMs)
}

func RecordAuthLogin() {
	globalManager.authLogins.Inc()
}

func RecordAuthFailure() {
	globalManager.authFailures.Inc()
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func UpdateWritebackQueueSize(size int) {
	globalManager.writebackQueueSize.Set(float64(size))
}

func UpdateWritebackQueueCapacity(capacity int) {
	globalManager.writebackQueueCap.Set(float64(capacity))
}

func RecordWritebackEnqueue() {
	globalManager.writebackEnqueues.Inc()
}

func RecordWritebackSyncFlush() {
	globalManager.writebackSyncFlushes.Inc()
}

func RecordWritebackError() {
	globalManager.writebackErrors.Inc()
}

func RecordWritebackFlushLatency(latencyMs float64) {
	globalManager.writebackFlushLatency.Observe(latencyMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
