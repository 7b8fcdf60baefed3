// Package metrics provides Prometheus metrics for the hogu ingestion service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the hogu service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ingress
	datagramsReceived prometheus.Counter
	datagramBytes     prometheus.Counter
	socketErrors      prometheus.Counter
	ingestionState    prometheus.Gauge

	// Codec
	eventsParsed *prometheus.CounterVec
	parseLatency prometheus.Histogram

	// Correlation and context
	enrichments     prometheus.Counter
	windowResets    prometheus.Counter
	contextChanges  *prometheus.CounterVec
	unknownObserved prometheus.Counter

	// Persistence
	eventsPersisted     prometheus.Counter
	persistenceFailures *prometheus.CounterVec
	persistenceRetries  prometheus.Counter
	persistenceLatency  prometheus.Histogram
	persistenceQueue    prometheus.Gauge

	// Connection pool
	poolInUse       prometheus.Gauge
	poolIdle        prometheus.Gauge
	poolWaitLatency prometheus.Histogram
	poolTimeouts    prometheus.Counter
	poolDiscarded   prometheus.Counter

	// Archival
	archivedEvents prometheus.Counter
	restoredEvents prometheus.Counter

	// Distribution
	busPublished   prometheus.Counter
	busDropped     *prometheus.CounterVec
	busSubscribers prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "hogu",
		subsystem:        "pss",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	microBuckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.datagramsReceived = m.counter("datagrams_received_total", "Total UDP datagrams received from the scoring system")
	m.datagramBytes = m.counter("datagram_bytes_total", "Total bytes received from the scoring system")
	m.socketErrors = m.counter("socket_errors_total", "Socket read errors encountered by the ingestion loop")
	m.ingestionState = m.gauge("ingestion_state", "Ingestion loop state (0 stopped, 1 starting, 2 running, 3 stopping)")

	m.eventsParsed = m.counterVec("events_parsed_total", "Parsed events by kind and recognition status", "kind", "status")
	m.parseLatency = m.histogram("parse_latency_microseconds", "Codec parse latency in microseconds", microBuckets)

	m.enrichments = m.counter("correlation_enrichments_total", "Point events enriched with hit-level readings")
	m.windowResets = m.counter("correlation_resets_total", "Correlation window resets on fight lifecycle signals")
	m.contextChanges = m.counterVec("context_changes_total", "Context changes by field", "field")
	m.unknownObserved = m.counter("unknown_events_total", "Events collected as unknown patterns")

	m.eventsPersisted = m.counter("events_persisted_total", "Events committed to the event store")
	m.persistenceFailures = m.counterVec("persistence_failures_total", "Events that could not be persisted", "reason")
	m.persistenceRetries = m.counter("persistence_retries_total", "Persistence retry attempts")
	m.persistenceLatency = m.histogram("persistence_latency_milliseconds", "Event store transaction latency in milliseconds", m.histogramBuckets)
	m.persistenceQueue = m.gauge("persistence_queue_depth", "Events waiting for persistence across all workers")

	m.poolInUse = m.gauge("pool_connections_in_use", "Store connections currently checked out")
	m.poolIdle = m.gauge("pool_connections_idle", "Store connections idle in the pool")
	m.poolWaitLatency = m.histogram("pool_wait_milliseconds", "Time spent waiting for a pooled connection", m.histogramBuckets)
	m.poolTimeouts = m.counter("pool_timeouts_total", "Connection acquisitions that timed out")
	m.poolDiscarded = m.counter("pool_discarded_total", "Connections discarded after failed health checks or idle expiry")

	m.archivedEvents = m.counter("archived_events_total", "Events moved to archive tables")
	m.restoredEvents = m.counter("restored_events_total", "Events restored from archive tables")

	m.busPublished = m.counter("bus_published_total", "Messages published on the distribution bus")
	m.busDropped = m.counterVec("bus_dropped_total", "Messages dropped for slow subscribers", "subscriber")
	m.busSubscribers = m.gauge("bus_subscribers", "Active distribution bus subscribers")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingress.

// RecordDatagram counts one received datagram of n bytes.
func RecordDatagram(n int) {
	globalManager.datagramsReceived.Inc()
	globalManager.datagramBytes.Add(float64(n))
}

// RecordSocketError counts a socket read error.
func RecordSocketError() {
	globalManager.socketErrors.Inc()
}

// UpdateIngestionState sets the ingestion loop state gauge.
func UpdateIngestionState(state int) {
	globalManager.ingestionState.Set(float64(state))
}

// Codec.

// RecordEventParsed counts a parsed event by kind and status.
func RecordEventParsed(kind, status string) {
	globalManager.eventsParsed.WithLabelValues(kind, status).Inc()
}

// RecordParseLatency records codec latency in microseconds.
func RecordParseLatency(latencyUs float64) {
	globalManager.parseLatency.Observe(latencyUs)
}

// Correlation and context.

// RecordEnrichment counts an enriched point event.
func RecordEnrichment() {
	globalManager.enrichments.Inc()
}

// RecordWindowReset counts a correlation window reset.
func RecordWindowReset() {
	globalManager.windowResets.Inc()
}

// RecordContextChange counts a context field change.
func RecordContextChange(field string) {
	globalManager.contextChanges.WithLabelValues(field).Inc()
}

// RecordUnknownEvent counts an unknown pattern occurrence.
func RecordUnknownEvent() {
	globalManager.unknownObserved.Inc()
}

// Persistence.

// RecordEventPersisted counts a committed event.
func RecordEventPersisted() {
	globalManager.eventsPersisted.Inc()
}

// RecordPersistenceFailure counts an event lost to persistence with a reason label.
func RecordPersistenceFailure(reason string) {
	globalManager.persistenceFailures.WithLabelValues(reason).Inc()
}

// RecordPersistenceRetry counts a retry attempt.
func RecordPersistenceRetry() {
	globalManager.persistenceRetries.Inc()
}

// RecordPersistenceLatency records store latency in milliseconds.
func RecordPersistenceLatency(latencyMs float64) {
	globalManager.persistenceLatency.Observe(latencyMs)
}

// UpdatePersistenceQueueDepth sets the pending persistence depth.
func UpdatePersistenceQueueDepth(depth int) {
	globalManager.persistenceQueue.Set(float64(depth))
}

// Connection pool.

// UpdatePoolConnections sets in-use and idle connection gauges.
func UpdatePoolConnections(inUse, idle int) {
	globalManager.poolInUse.Set(float64(inUse))
	globalManager.poolIdle.Set(float64(idle))
}

// RecordPoolWait records time spent acquiring a connection.
func RecordPoolWait(latencyMs float64) {
	globalManager.poolWaitLatency.Observe(latencyMs)
}

// RecordPoolTimeout counts an acquisition timeout.
func RecordPoolTimeout() {
	globalManager.poolTimeouts.Inc()
}

// RecordPoolDiscard counts a discarded connection.
func RecordPoolDiscard() {
	globalManager.poolDiscarded.Inc()
}

// Archival.

// RecordArchived counts archived events.
func RecordArchived(n int64) {
	globalManager.archivedEvents.Add(float64(n))
}

// RecordRestored counts restored events.
func RecordRestored(n int64) {
	globalManager.restoredEvents.Add(float64(n))
}

// Distribution.

// RecordBusPublish counts a published bus message.
func RecordBusPublish() {
	globalManager.busPublished.Inc()
}

// RecordBusDrop counts a message dropped for subscriber.
func RecordBusDrop(subscriber string) {
	globalManager.busDropped.WithLabelValues(subscriber).Inc()
}

// UpdateBusSubscribers sets the subscriber gauge.
func UpdateBusSubscribers(count int) {
	globalManager.busSubscribers.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it once at process start, before metrics are recorded.
// The previous manager stays in place when registration fails.
func Configure(opts ...Option) (err error) {
	registry := prometheus.NewRegistry()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRegister, r)
		}
	}()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	globalManager, customRegistry = m, registry
	return nil
}

// RefreshInterval returns the cadence for polled gauges.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
