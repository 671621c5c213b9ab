package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Reputation
	reputationComputed  prometheus.Counter
	reputationFallbacks prometheus.Counter
	reputationLatency   prometheus.Histogram
	reputationLevels    prometheus.Histogram

	// Matching
	matchRequests       *prometheus.CounterVec
	candidatesEvaluated prometheus.Counter
	candidatesListed    prometheus.Counter
	disqualifications   *prometheus.CounterVec
	matchLatency        prometheus.Histogram

	// Ranking
	rankRequests   prometheus.Counter
	itemsGated     prometheus.Counter
	itemsReturned  prometheus.Counter
	rankingLatency prometheus.Histogram

	// Ingestion
	eventsIngested  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsRejected  *prometheus.CounterVec

	// Ledger and collaborator guard
	ledgerAppends   *prometheus.CounterVec
	ledgerLatency   *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
	fetchRetries    *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	catalogEntities *prometheus.GaugeVec

	// Standings
	standingsSize       prometheus.Gauge
	standingsUpdates    prometheus.Counter
	standingsRefreshes  prometheus.Counter
	standingsRefreshDur prometheus.Histogram
	standingsQueryLat   prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rapport",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.reputationComputed = auto.NewCounter(m.counter("reputation_computed_total", "Reputation snapshots computed from ledger events"))
	m.reputationFallbacks = auto.NewCounter(m.counter("reputation_fallbacks_total", "Reputation lookups answered with the unavailable default"))
	m.reputationLatency = auto.NewHistogram(m.histogram("reputation_latency_milliseconds", "Time to fetch events and compute one snapshot", nil))
	m.reputationLevels = auto.NewHistogram(m.histogram("reputation_level", "Distribution of computed reputation levels",
		[]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 14}))

	m.matchRequests = auto.NewCounterVec(m.counter("match_requests_total", "Match requests by weight profile"), []string{"profile"})
	m.candidatesEvaluated = auto.NewCounter(m.counter("match_candidates_evaluated_total", "Candidates scored by the matcher"))
	m.candidatesListed = auto.NewCounter(m.counter("match_candidates_shortlisted_total", "Candidates returned above the shortlist threshold"))
	m.disqualifications = auto.NewCounterVec(m.counter("match_disqualifications_total", "Candidates disqualified before scoring"), []string{"reason"})
	m.matchLatency = auto.NewHistogram(m.histogram("match_latency_milliseconds", "Match request latency including pool fetch", nil))

	m.rankRequests = auto.NewCounter(m.counter("rank_requests_total", "Opportunity ranking requests"))
	m.itemsGated = auto.NewCounter(m.counter("rank_items_gated_total", "Opportunities dropped by the reputation, activity or expiry gate"))
	m.itemsReturned = auto.NewCounter(m.counter("rank_items_returned_total", "Opportunities returned to requesters"))
	m.rankingLatency = auto.NewHistogram(m.histogram("rank_latency_milliseconds", "Ranking request latency including pool fetch", nil))

	m.eventsIngested = auto.NewCounterVec(m.counter("events_ingested_total", "Contribution events accepted by kind"), []string{"kind"})
	m.eventsDuplicate = auto.NewCounter(m.counter("events_duplicate_total", "Contribution events dropped as duplicates"))
	m.eventsRejected = auto.NewCounterVec(m.counter("events_rejected_total", "Contribution events rejected by reason"), []string{"reason"})

	m.ledgerAppends = auto.NewCounterVec(m.counter("ledger_appends_total", "Events appended to the ledger by backend"), []string{"backend"})
	m.ledgerLatency = auto.NewHistogramVec(m.histogram("ledger_latency_milliseconds", "Ledger operation latency", nil), []string{"backend", "op"})
	m.breakerState = auto.NewGaugeVec(m.gauge("breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)"), []string{"name"})
	m.fetchRetries = auto.NewCounterVec(m.counter("fetch_retries_total", "Collaborator fetch retries"), []string{"name"})
	m.fetchFailures = auto.NewCounterVec(m.counter("fetch_failures_total", "Collaborator fetches that gave up"), []string{"name"})
	m.catalogEntities = auto.NewGaugeVec(m.gauge("catalog_entities", "Entities held by the catalog"), []string{"kind"})

	m.standingsSize = auto.NewGauge(m.gauge("standings_subjects", "Subjects tracked in the standings"))
	m.standingsUpdates = auto.NewCounter(m.counter("standings_updates_total", "Standing score changes"))
	m.standingsRefreshes = auto.NewCounter(m.counter("standings_refreshes_total", "Completed full standings refreshes"))
	m.standingsRefreshDur = auto.NewHistogram(m.histogram("standings_refresh_duration_milliseconds", "Duration of a full standings refresh",
		[]float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000}))
	m.standingsQueryLat = auto.NewHistogram(m.histogram("standings_query_latency_milliseconds", "Standings read latency", nil))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the event queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total", "Events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total", "Events dequeued"))
	m.queueEnqueueErrs = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Enqueue failures"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured ingestion workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently applying an event"))
	m.workerIdleCount = auto.NewGauge(m.gauge("worker_idle_count", "Workers waiting for an event"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Time to apply one event", nil))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Events a worker failed to apply"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration", nil),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_time_milliseconds", "Most recent GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Reputation.

// RecordReputationComputed counts a snapshot computed from ledger events.
func RecordReputationComputed(level int, latencyMs float64) {
	globalManager.reputationComputed.Inc()
	globalManager.reputationLevels.Observe(float64(level))
	globalManager.reputationLatency.Observe(latencyMs)
}

// RecordReputationFallback counts a lookup answered with the unavailable default.
func RecordReputationFallback() {
	globalManager.reputationFallbacks.Inc()
}

// Matching.

// RecordMatch records one match request.
func RecordMatch(profile string, evaluated, shortlisted int, latencyMs float64) {
	globalManager.matchRequests.WithLabelValues(profile).Inc()
	globalManager.candidatesEvaluated.Add(float64(evaluated))
	globalManager.candidatesListed.Add(float64(shortlisted))
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordDisqualification counts a candidate disqualified for reason.
func RecordDisqualification(reason string) {
	globalManager.disqualifications.WithLabelValues(reason).Inc()
}

// Ranking.

// RecordRanking records one opportunity ranking request.
func RecordRanking(gated, returned int, latencyMs float64) {
	globalManager.rankRequests.Inc()
	globalManager.itemsGated.Add(float64(gated))
	globalManager.itemsReturned.Add(float64(returned))
	globalManager.rankingLatency.Observe(latencyMs)
}

// Ingestion.

// RecordEventIngested counts an accepted event.
func RecordEventIngested(kind string) {
	globalManager.eventsIngested.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate counts an event dropped as a duplicate.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventRejected counts an event rejected for reason.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// Ledger and guard.

// RecordLedgerAppend counts an event written to backend.
func RecordLedgerAppend(backend string) {
	globalManager.ledgerAppends.WithLabelValues(backend).Inc()
}

// RecordLedgerLatency records the latency of a ledger operation.
func RecordLedgerLatency(backend, op string, latencyMs float64) {
	globalManager.ledgerLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// UpdateBreakerState sets the state of the named breaker.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordFetchRetry counts a retried collaborator fetch.
func RecordFetchRetry(name string) {
	globalManager.fetchRetries.WithLabelValues(name).Inc()
}

// RecordFetchFailure counts a collaborator fetch that gave up.
func RecordFetchFailure(name string) {
	globalManager.fetchFailures.WithLabelValues(name).Inc()
}

// UpdateCatalogEntities sets how many entities of kind the catalog holds.
func UpdateCatalogEntities(kind string, count int) {
	globalManager.catalogEntities.WithLabelValues(kind).Set(float64(count))
}

// Standings.

// UpdateStandingsSize sets the number of ranked subjects.
func UpdateStandingsSize(count int) {
	globalManager.standingsSize.Set(float64(count))
}

// RecordStandingsUpdate counts a changed standing.
func RecordStandingsUpdate() {
	globalManager.standingsUpdates.Inc()
}

// RecordStandingsRefresh records a completed full refresh.
func RecordStandingsRefresh(durationMs float64) {
	globalManager.standingsRefreshes.Inc()
	globalManager.standingsRefreshDur.Observe(durationMs)
}

// RecordStandingsQueryLatency records a standings read.
func RecordStandingsQueryLatency(latencyMs float64) {
	globalManager.standingsQueryLat.Observe(latencyMs)
}

// Queue.

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
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time to apply one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
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

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap memory in use.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
