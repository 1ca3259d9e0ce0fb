// Package metrics provides Prometheus metrics for the pickem prediction service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pickem service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Board interaction metrics
	reorders         *prometheus.CounterVec
	dragOutcomes     *prometheus.CounterVec
	slotAssignments  *prometheus.CounterVec
	slotClears       *prometheus.CounterVec
	slotRejections   *prometheus.CounterVec
	propPicks        prometheus.Counter
	playerSearches   prometheus.Counter
	boardsOpen       prometheus.Gauge
	mutationsBlocked prometheus.Counter

	// Persistence metrics
	saves            *prometheus.CounterVec
	saveDuplicates   prometheus.Counter
	debounceRestarts prometheus.Counter
	debouncePending  prometheus.Gauge
	storeWrites      prometheus.Counter
	storeSkips       prometheus.Counter
	storeStale       prometheus.Counter
	storeSnapshots   prometheus.Gauge
	storeLatency     prometheus.Histogram

	// Realtime
	wsConnections prometheus.Gauge
	wsBroadcasts  prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     prometheus.Counter

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pickem",
		subsystem:        "board",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.reorders = m.counterVec("reorders_total", "Standings reorders by conference and outcome", "conference", "outcome")
	m.dragOutcomes = m.counterVec("drag_gestures_total", "Drag gestures by conference and outcome", "conference", "outcome")
	m.slotAssignments = m.counterVec("slot_assignments_total", "Players assigned to slots by category", "category")
	m.slotClears = m.counterVec("slot_clears_total", "Slots cleared by category", "category")
	m.slotRejections = m.counterVec("slot_rejections_total", "Assignments refused by the duplicate policy", "category")
	m.propPicks = m.counter("prop_picks_total", "Over/under picks recorded")
	m.playerSearches = m.counter("player_searches_total", "Player registry filter calls")
	m.boardsOpen = m.gauge("boards_open", "Boards currently held in memory")
	m.mutationsBlocked = m.counter("mutations_blocked_total", "Mutations refused because the season is locked")

	m.saves = m.counterVec("saves_total", "Save requests by category and source", "category", "source")
	m.saveDuplicates = m.counter("save_duplicates_total", "Manual saves acknowledged from the idempotency cache")
	m.debounceRestarts = m.counter("debounce_restarts_total", "Changes that restarted a pending quiet period")
	m.debouncePending = m.gauge("debounce_pending", "Keys with an armed quiet-period timer")
	m.storeWrites = m.counter("store_writes_total", "Prediction snapshots written")
	m.storeSkips = m.counter("store_skips_total", "Prediction snapshots skipped because nothing changed")
	m.storeStale = m.counter("store_stale_total", "Prediction snapshots dropped because a newer revision was stored")
	m.storeSnapshots = m.gauge("store_snapshots", "Prediction snapshots held by the store")
	m.storeLatency = m.histogram("store_write_latency_milliseconds", "Prediction store write latency in milliseconds")

	m.wsConnections = m.gauge("ws_connections", "Open websocket connections")
	m.wsBroadcasts = m.counter("ws_broadcasts_total", "Board events pushed to websocket clients")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRateLimited = m.counter("http_rate_limited_total", "Requests refused by the rate limiter")

	m.queueSize = m.gauge("queue_size", "Current size of the save queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum save queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Save queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of save requests enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of save requests dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of save workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of running save workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Save worker processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of save worker errors")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordReorder counts a reorder; outcome is "moved" or "noop".
func RecordReorder(conference, outcome string) {
	globalManager.reorders.WithLabelValues(conference, outcome).Inc()
}

// RecordDragOutcome counts a finished drag gesture ("dropped", "cancelled", "ignored").
func RecordDragOutcome(conference, outcome string) {
	globalManager.dragOutcomes.WithLabelValues(conference, outcome).Inc()
}

// RecordSlotAssignment increments the assignment counter for a category.
func RecordSlotAssignment(category string) {
	globalManager.slotAssignments.WithLabelValues(category).Inc()
}

// RecordSlotClear increments the clear counter for a category.
func RecordSlotClear(category string) {
	globalManager.slotClears.WithLabelValues(category).Inc()
}

// RecordSlotRejection increments the rejected-assignment counter.
func RecordSlotRejection(category string) {
	globalManager.slotRejections.WithLabelValues(category).Inc()
}

// RecordPropPick increments the prop pick counter.
func RecordPropPick() {
	globalManager.propPicks.Inc()
}

// RecordPlayerSearch increments the search counter.
func RecordPlayerSearch() {
	globalManager.playerSearches.Inc()
}

// UpdateBoardsOpen sets the open board gauge.
func UpdateBoardsOpen(count int) {
	globalManager.boardsOpen.Set(float64(count))
}

// RecordMutationBlocked counts a mutation refused after the lock cutoff.
func RecordMutationBlocked() {
	globalManager.mutationsBlocked.Inc()
}

// RecordSave counts a save request handed to the queue.
func RecordSave(category, source string) {
	globalManager.saves.WithLabelValues(category, source).Inc()
}

// RecordSaveDuplicate counts a manual save answered from the idempotency cache.
func RecordSaveDuplicate() {
	globalManager.saveDuplicates.Inc()
}

// RecordDebounceRestart counts a change that pushed back a pending save.
func RecordDebounceRestart() {
	globalManager.debounceRestarts.Inc()
}

// UpdateDebouncePending sets the number of armed debounce timers.
func UpdateDebouncePending(count int) {
	globalManager.debouncePending.Set(float64(count))
}

// RecordStoreWrite records a stored snapshot and its latency.
func RecordStoreWrite(latencyMs float64) {
	globalManager.storeWrites.Inc()
	globalManager.storeLatency.Observe(latencyMs)
}

// RecordStoreSkip counts a write skipped because the digest was unchanged.
func RecordStoreSkip() {
	globalManager.storeSkips.Inc()
}

// RecordStoreStale counts a write dropped because it was older than the
// stored revision.
func RecordStoreStale() {
	globalManager.storeStale.Inc()
}

// UpdateStoreSnapshots sets the number of snapshots in the store.
func UpdateStoreSnapshots(count int) {
	globalManager.storeSnapshots.Set(float64(count))
}

// UpdateWSConnections sets the number of open websocket connections.
func UpdateWSConnections(count int) {
	globalManager.wsConnections.Set(float64(count))
}

// RecordWSBroadcast counts an event delivered to websocket clients.
func RecordWSBroadcast() {
	globalManager.wsBroadcasts.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request refused by the rate limiter.
func RecordRateLimited() {
	globalManager.httpRateLimited.Inc()
}

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
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// CollectSystem samples runtime memory and goroutine gauges once.
func CollectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// RunSystemCollector samples system gauges every refresh interval until ctx is done.
// It returns immediately when metrics are disabled.
func RunSystemCollector(ctx context.Context) {
	if !globalManager.enabled {
		return
	}
	t := time.NewTicker(globalManager.refreshInterval)
	defer t.Stop()
	CollectSystem()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			CollectSystem()
		}
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
