// Package metrics provides Prometheus metrics for the vita wellness engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the vita service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion Metrics - what the stream accepts and rejects
	readingsIngested prometheus.Counter
	readingsRejected *prometheus.CounterVec
	readingsDropped  prometheus.Counter
	connectedDevices prometheus.Gauge

	// Derivation Metrics - control loop health
	deriveCycles    prometheus.Counter
	deriveLatency   prometheus.Histogram
	statesPublished prometheus.Counter
	stressIndex     prometheus.Gauge
	wellnessScore   prometheus.Gauge
	historySize     prometheus.Gauge

	// Trigger Metrics
	triggerFirings *prometheus.CounterVec
	triggerErrors  prometheus.Counter
	triggerCount   prometheus.Gauge

	// Queue Metrics - reading queue performance
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Subscription Metrics - fan-out behavior
	subscriberCount        prometheus.Gauge
	notificationsDelivered prometheus.Counter
	notificationsDropped   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics - detailed error tracking
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "vita",
		subsystem:        "wellness",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Ingestion Metrics
	m.readingsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "readings_ingested_total",
		Help:      "Total number of readings accepted by the stream",
	})

	m.readingsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "readings_rejected_total",
			Help:      "Total number of readings rejected by validation, by reason",
		},
		[]string{"reason"},
	)

	m.readingsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "readings_dropped_total",
		Help:      "Total number of queued readings evicted under backpressure",
	})

	m.connectedDevices = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connected_devices",
		Help:      "Current number of connected devices",
	})

	// Derivation Metrics
	m.deriveCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "derive_cycles_total",
		Help:      "Total number of derivation cycles run by the engine",
	})

	m.deriveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "derive_latency_milliseconds",
		Help:      "Histogram of derivation cycle latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.statesPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "states_published_total",
		Help:      "Total number of derived states published to subscribers",
	})

	m.stressIndex = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stress_index",
		Help:      "Most recently published smoothed stress index (0-100)",
	})

	m.wellnessScore = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "wellness_score",
		Help:      "Most recently published composite wellness score (0-100)",
	})

	m.historySize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_size",
		Help:      "Current number of states retained in the history buffer",
	})

	// Trigger Metrics
	m.triggerFirings = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "trigger_firings_total",
			Help:      "Total number of trigger firings, by intervention level",
		},
		[]string{"level"},
	)

	m.triggerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trigger_errors_total",
		Help:      "Total number of trigger conditions that panicked during evaluation",
	})

	m.triggerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trigger_count",
		Help:      "Current number of registered triggers",
	})

	// Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the reading queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum reading queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of readings enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of readings dequeued by the engine",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue failures",
	})

	// Subscription Metrics
	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscriber_count",
		Help:      "Current number of active subscriptions",
	})

	m.notificationsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_delivered_total",
		Help:      "Total number of changed projections delivered to subscribers",
	})

	m.notificationsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_dropped_total",
		Help:      "Total number of notifications evicted from slow subscriber buffers",
	})

	// HTTP Performance Metrics
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

	// Error Metrics
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// Ingestion Metrics Functions.

// RecordReadingIngested increments the accepted readings counter.
func RecordReadingIngested() {
	globalManager.readingsIngested.Inc()
}

// RecordReadingRejected increments the rejected readings counter for a reason.
func RecordReadingRejected(reason string) {
	globalManager.readingsRejected.WithLabelValues(reason).Inc()
}

// RecordBackpressureDrop increments the backpressure eviction counter.
func RecordBackpressureDrop() {
	globalManager.readingsDropped.Inc()
}

// UpdateConnectedDevices sets the connected devices gauge.
func UpdateConnectedDevices(count int) {
	globalManager.connectedDevices.Set(float64(count))
}

// Derivation Metrics Functions.

// RecordDeriveCycle increments the derivation cycle counter.
func RecordDeriveCycle() {
	globalManager.deriveCycles.Inc()
}

// RecordDeriveLatency records one derivation cycle's latency.
func RecordDeriveLatency(latencyMs float64) {
	globalManager.deriveLatency.Observe(latencyMs)
}

// RecordStatePublished increments the published states counter.
func RecordStatePublished() {
	globalManager.statesPublished.Inc()
}

// UpdateStressIndex sets the stress index gauge.
func UpdateStressIndex(v float64) {
	globalManager.stressIndex.Set(v)
}

// UpdateWellnessScore sets the wellness score gauge.
func UpdateWellnessScore(v float64) {
	globalManager.wellnessScore.Set(v)
}

// UpdateHistorySize sets the history buffer size gauge.
func UpdateHistorySize(size int) {
	globalManager.historySize.Set(float64(size))
}

// Trigger Metrics Functions.

// RecordTriggerFiring increments the firing counter for an intervention level.
func RecordTriggerFiring(level string) {
	globalManager.triggerFirings.WithLabelValues(level).Inc()
}

// RecordTriggerError increments the panicking condition counter.
func RecordTriggerError() {
	globalManager.triggerErrors.Inc()
}

// UpdateTriggerCount sets the registered trigger gauge.
func UpdateTriggerCount(count int) {
	globalManager.triggerCount.Set(float64(count))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// Subscription Metrics Functions.

// UpdateSubscriberCount sets the active subscription gauge.
func UpdateSubscriberCount(count int) {
	globalManager.subscriberCount.Set(float64(count))
}

// RecordNotificationDelivered increments the delivered notification counter.
func RecordNotificationDelivered() {
	globalManager.notificationsDelivered.Inc()
}

// RecordNotificationDropped increments the dropped notification counter.
func RecordNotificationDropped() {
	globalManager.notificationsDropped.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
