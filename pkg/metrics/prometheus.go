// Package metrics provides Prometheus metrics for the skillwatch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch result labels.
const (
	ResultSuccess        = "success"
	ResultTransportError = "transport_error"
	ResultDecodeError    = "decode_error"
	ResultSkipped        = "skipped"
)

// Manager manages all Prometheus metrics for the skillwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline metrics
	fetchesTotal        *prometheus.CounterVec
	fetchLatency        prometheus.Histogram
	fetchCoalesced      prometheus.Counter
	refreshTriggers     *prometheus.CounterVec
	refreshIgnored      prometheus.Counter
	upstreamWaitLatency prometheus.Histogram
	defaultedEntries    prometheus.Counter

	// Window state
	windowActive      prometheus.Gauge
	windowTransitions *prometheus.CounterVec

	// Snapshot state
	snapshotLastSuccessUnix prometheus.Gauge
	snapshotAgeSeconds      prometheus.Gauge
	skillLevel              *prometheus.GaugeVec
	skillExperience         *prometheus.GaugeVec
	skillRank               *prometheus.GaugeVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error breakdowns
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skillwatch",
		subsystem:        "tracker",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.fetchesTotal = auto.NewCounterVec(m.counterOpts("fetches_total", "Upstream feed fetches by result"), []string{"result"})
	m.fetchLatency = auto.NewHistogram(m.histogramOpts("fetch_latency_milliseconds", "Upstream fetch latency in milliseconds, parse included", m.histogramBuckets))
	m.fetchCoalesced = auto.NewCounter(m.counterOpts("fetch_coalesced_total", "Refresh triggers joined to an already in-flight fetch"))
	m.refreshTriggers = auto.NewCounterVec(m.counterOpts("refresh_triggers_total", "Refresh triggers by source"), []string{"source"})
	m.refreshIgnored = auto.NewCounter(m.counterOpts("refresh_ignored_total", "Refresh triggers ignored outside the active window"))
	m.upstreamWaitLatency = auto.NewHistogram(m.histogramOpts("upstream_wait_milliseconds", "Time spent waiting on the upstream rate limiter", m.histogramBuckets))
	m.defaultedEntries = auto.NewCounter(m.counterOpts("defaulted_entries_total", "Entries missing from the feed and filled with the unranked default"))

	m.windowActive = auto.NewGauge(m.gaugeOpts("window_active", "1 while inside the daily active window"))
	m.windowTransitions = auto.NewCounterVec(m.counterOpts("window_transitions_total", "Active window state transitions by target state"), []string{"to"})

	m.snapshotLastSuccessUnix = auto.NewGauge(m.gaugeOpts("snapshot_last_success_unixtime", "Unix time of the last stored snapshot"))
	m.snapshotAgeSeconds = auto.NewGauge(m.gaugeOpts("snapshot_age_seconds", "Age of the cached snapshot in seconds"))
	m.skillLevel = auto.NewGaugeVec(m.gaugeOpts("skill_level", "Level per entry from the latest snapshot"), []string{"skill"})
	m.skillExperience = auto.NewGaugeVec(m.gaugeOpts("skill_experience", "Experience per entry from the latest snapshot"), []string{"skill"})
	m.skillRank = auto.NewGaugeVec(m.gaugeOpts("skill_rank", "Rank per entry from the latest snapshot, -1 when unranked"), []string{"skill"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", prometheus.DefBuckets),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of operations that ended in an error", m.histogramBuckets),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordFetch records the outcome and latency of one upstream fetch.
func RecordFetch(result string, latencyMs float64) {
	globalManager.fetchesTotal.WithLabelValues(result).Inc()
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordFetchCoalesced counts a trigger that joined an in-flight fetch.
func RecordFetchCoalesced() {
	globalManager.fetchCoalesced.Inc()
}

// RecordRefreshTrigger counts a refresh trigger by source (tick, read, wake, transition).
func RecordRefreshTrigger(source string) {
	globalManager.refreshTriggers.WithLabelValues(source).Inc()
}

// RecordRefreshIgnored counts a trigger dropped while inactive.
func RecordRefreshIgnored() {
	globalManager.refreshIgnored.Inc()
}

// RecordUpstreamWait records time spent on the upstream rate limiter.
func RecordUpstreamWait(latencyMs float64) {
	globalManager.upstreamWaitLatency.Observe(latencyMs)
}

// RecordDefaultedEntries adds n entries that were filled with defaults.
func RecordDefaultedEntries(n int) {
	if n > 0 {
		globalManager.defaultedEntries.Add(float64(n))
	}
}

// UpdateWindowActive sets the active window gauge.
func UpdateWindowActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	globalManager.windowActive.Set(v)
}

// RecordWindowTransition counts a transition into state ("active" or "inactive").
func RecordWindowTransition(state string) {
	globalManager.windowTransitions.WithLabelValues(state).Inc()
}

// RecordSnapshotStored marks a snapshot stored at t.
func RecordSnapshotStored(t time.Time) {
	globalManager.snapshotLastSuccessUnix.Set(float64(t.Unix()))
	globalManager.snapshotAgeSeconds.Set(0)
}

// UpdateSnapshotAge sets the age of the cached snapshot.
func UpdateSnapshotAge(age time.Duration) {
	globalManager.snapshotAgeSeconds.Set(age.Seconds())
}

// UpdateSkill sets the per-entry gauges.
func UpdateSkill(skill string, rank, level int, experience int64) {
	globalManager.skillRank.WithLabelValues(skill).Set(float64(rank))
	globalManager.skillLevel.WithLabelValues(skill).Set(float64(level))
	globalManager.skillExperience.WithLabelValues(skill).Set(float64(experience))
}

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

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
