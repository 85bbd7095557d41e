// Package metrics provides Prometheus metrics for the rota matching service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets covers sub-millisecond pure matching up to slow store round trips.
var defaultLatencyBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // constant table

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Matching
	assignments       *prometheus.CounterVec
	candidatePoolSize prometheus.Histogram
	opportunityScore  prometheus.Histogram
	selectedRank      *prometheus.CounterVec
	assignLatency     prometheus.Histogram
	commitConflicts   prometheus.Counter

	// Mentorship
	mentorshipEvaluations *prometheus.CounterVec
	mentorshipPaid        prometheus.Counter
	eventsDuplicate       prometheus.Counter

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// Queue
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueEnqueueError *prometheus.CounterVec

	// Worker
	workerCount     prometheus.Gauge
	workerLatency   prometheus.Histogram
	workerErrors    prometheus.Counter
	workerProcessed prometheus.Counter

	// Broker
	publishTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Private registry so the Go runtime collectors are not exported twice.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "rota",
		subsystem:      "matching",
		latencyBuckets: defaultLatencyBuckets,
		constLabels:    map[string]string{},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.assignments = m.counterVec("assignments_total", "Assignment attempts by outcome", "outcome")
	m.candidatePoolSize = m.histogram("candidate_pool_size", "Eligible operators returned per assignment", []float64{0, 1, 2, 3, 5, 10, 15, 20})
	m.opportunityScore = m.histogram("opportunity_score", "Opportunity scores of selected operators", prometheus.LinearBuckets(0, 15, 8))
	m.selectedRank = m.counterVec("selected_rank_total", "Winners by rank inside the rotation window", "rank")
	m.assignLatency = m.histogram("assignment_latency_milliseconds", "End-to-end assignment latency", m.latencyBuckets)
	m.commitConflicts = m.counter("commit_conflicts_total", "Conditional commits that lost a race")

	m.mentorshipEvaluations = m.counterVec("mentorship_evaluations_total", "Mentorship evaluations by outcome", "outcome")
	m.mentorshipPaid = m.counter("mentorship_bonus_paid_total", "Sum of mentorship bonus amounts appended to the ledger")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Mentorship events dropped as duplicates")

	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "repository_latency_milliseconds",
		Help: "Repository call latency", ConstLabels: m.constLabels, Buckets: m.latencyBuckets,
	}, []string{"operation"})
	m.repositoryErrors = m.counterVec("repository_errors_total", "Repository call failures", "operation")

	m.queueSize = m.gauge("queue_size", "Mentorship events waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Events dequeued")
	m.queueEnqueueError = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues", "reason")

	m.workerCount = m.gauge("worker_count", "Running mentorship workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Per-event worker latency", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Events that failed in a worker")
	m.workerProcessed = m.counter("worker_processed_total", "Events processed by workers")

	m.publishTotal = m.counterVec("publish_total", "Domain event publishes by routing key and result", "routing_key", "result")
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)", ConstLabels: m.constLabels,
	}, []string{"name"})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration", ConstLabels: m.constLabels, Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.latencyBuckets)
}

// Matching.

// RecordAssignment counts one assignment attempt by outcome (success or a reason code).
func RecordAssignment(outcome string) {
	globalManager.assignments.WithLabelValues(outcome).Inc()
}

// ObserveCandidatePool records how many eligible operators a decision saw.
func ObserveCandidatePool(size int) {
	globalManager.candidatePoolSize.Observe(float64(size))
}

// ObserveOpportunityScore records the winning operator's score.
func ObserveOpportunityScore(score float64) {
	globalManager.opportunityScore.Observe(score)
}

// RecordSelectedRank counts the winner's zero-based rank in the rotation window.
func RecordSelectedRank(rank int) {
	globalManager.selectedRank.WithLabelValues(strconv.Itoa(rank)).Inc()
}

// ObserveAssignmentLatency records end-to-end assignment latency.
func ObserveAssignmentLatency(ms float64) {
	globalManager.assignLatency.Observe(ms)
}

// RecordCommitConflict counts a lost compare-and-set.
func RecordCommitConflict() {
	globalManager.commitConflicts.Inc()
}

// Mentorship.

// RecordMentorshipEvaluation counts a mentorship evaluation by outcome.
func RecordMentorshipEvaluation(outcome string) {
	globalManager.mentorshipEvaluations.WithLabelValues(outcome).Inc()
}

// AddMentorshipPaid adds a paid bonus amount.
func AddMentorshipPaid(amount float64) {
	if amount > 0 {
		globalManager.mentorshipPaid.Add(amount)
	}
}

// RecordEventDuplicate counts a duplicate mentorship event.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// Repository.

// ObserveRepositoryLatency records a repository call latency.
func ObserveRepositoryLatency(operation string, ms float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(ms)
}

// RecordRepositoryError counts a failed repository call.
func RecordRepositoryError(operation string) {
	globalManager.repositoryErrors.WithLabelValues(operation).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueError.WithLabelValues(reason).Inc()
}

// Worker.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// ObserveWorkerLatency records per-event worker latency.
func ObserveWorkerLatency(ms float64) {
	globalManager.workerLatency.Observe(ms)
}

// RecordWorkerError counts a failed event.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessed counts a processed event.
func RecordWorkerProcessed() {
	globalManager.workerProcessed.Inc()
}

// Broker.

// RecordPublish counts a publish attempt; result is "ok", "error" or "rejected".
func RecordPublish(routingKey, result string) {
	globalManager.publishTotal.WithLabelValues(routingKey, result).Inc()
}

// UpdateBreakerState sets the numeric state of a named circuit breaker.
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}

// HTTP.

// RecordHTTPRequest records one request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
