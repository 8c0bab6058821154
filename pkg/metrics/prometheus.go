// Package metrics provides Prometheus metrics for the matchcast service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Dataset and training
	datasetRows         prometheus.Gauge
	rowsRejected        *prometheus.CounterVec
	trainingDuration    prometheus.Gauge
	trainingEpochs      prometheus.Counter
	epochLoss           *prometheus.GaugeVec
	epochAccuracy       *prometheus.GaugeVec
	modelInfo           *prometheus.GaugeVec
	featureColumnsCount prometheus.Gauge

	// Prediction
	predictions        *prometheus.CounterVec
	predictionLatency  prometheus.Histogram
	predictionAccuracy prometheus.Histogram
	predictedMatches   prometheus.Counter
	cacheLookups       *prometheus.CounterVec

	// Cache warm-up
	warmupQueueSize prometheus.Gauge
	warmupJobs      *prometheus.CounterVec
	warmupLatency   prometheus.Histogram
	warmupWorkers   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchcast",
		subsystem:        "predictor",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.datasetRows = m.gauge("dataset_rows", "Number of match rows accepted from the dataset")
	m.rowsRejected = m.counterVec("dataset_rows_rejected_total", "Rows dropped while loading, by reason", "reason")
	m.trainingDuration = m.gauge("training_duration_seconds", "Wall time of the startup fit")
	m.trainingEpochs = m.counter("training_epochs_total", "Completed training epochs")
	m.epochLoss = m.gaugeVec("epoch_loss", "Cross-entropy of the last completed epoch", "split")
	m.epochAccuracy = m.gaugeVec("epoch_accuracy", "Accuracy of the last completed epoch", "split")
	m.modelInfo = m.gaugeVec("model_info", "Constant 1 labelled with the fitted model id", "model_id")
	m.featureColumnsCount = m.gauge("feature_columns", "Width of the feature vector")

	m.predictions = m.counterVec("predictions_total", "Prediction requests by outcome", "outcome")
	m.predictionLatency = m.histogram("prediction_latency_milliseconds", "Latency of a team prediction", m.histogramBuckets)
	m.predictionAccuracy = m.histogram("prediction_accuracy_percent", "Accuracy of served team predictions",
		prometheus.LinearBuckets(0, 10, 11))
	m.predictedMatches = m.counter("predicted_matches_total", "Matches scored by the classifier")
	m.cacheLookups = m.counterVec("cache_lookups_total", "Prediction cache lookups by result", "result")

	m.warmupQueueSize = m.gauge("warmup_queue_size", "Teams waiting for cache warm-up")
	m.warmupJobs = m.counterVec("warmup_jobs_total", "Cache warm-up jobs by result", "result")
	m.warmupLatency = m.histogram("warmup_job_latency_milliseconds", "Latency of one warm-up job", m.histogramBuckets)
	m.warmupWorkers = m.gauge("warmup_workers", "Workers of the running warm-up pool")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.histogramBuckets)
}

// Dataset and training.

func UpdateDatasetRows(n int)            { globalManager.datasetRows.Set(float64(n)) }
func RecordRowRejected(reason string)    { globalManager.rowsRejected.WithLabelValues(reason).Inc() }
func UpdateTrainingDuration(sec float64) { globalManager.trainingDuration.Set(sec) }
func UpdateFeatureColumns(n int)         { globalManager.featureColumnsCount.Set(float64(n)) }
func UpdateModelInfo(modelID string)     { globalManager.modelInfo.WithLabelValues(modelID).Set(1) }
func RecordTrainingEpoch()               { globalManager.trainingEpochs.Inc() }
func UpdateEpochLoss(split string, v float64) {
	globalManager.epochLoss.WithLabelValues(split).Set(v)
}
func UpdateEpochAccuracy(split string, v float64) {
	globalManager.epochAccuracy.WithLabelValues(split).Set(v)
}

// Prediction.

func RecordPrediction(outcome string)           { globalManager.predictions.WithLabelValues(outcome).Inc() }
func RecordPredictionLatency(latencyMs float64) { globalManager.predictionLatency.Observe(latencyMs) }
func RecordPredictionAccuracy(pct float64)      { globalManager.predictionAccuracy.Observe(pct) }
func RecordPredictedMatches(n int)              { globalManager.predictedMatches.Add(float64(n)) }
func RecordCacheHit()                           { globalManager.cacheLookups.WithLabelValues("hit").Inc() }
func RecordCacheMiss()                          { globalManager.cacheLookups.WithLabelValues("miss").Inc() }
func RecordCacheError()                         { globalManager.cacheLookups.WithLabelValues("error").Inc() }

// Cache warm-up.

func UpdateWarmupQueueSize(n int)           { globalManager.warmupQueueSize.Set(float64(n)) }
func RecordWarmupJob(result string)         { globalManager.warmupJobs.WithLabelValues(result).Inc() }
func RecordWarmupLatency(latencyMs float64) { globalManager.warmupLatency.Observe(latencyMs) }
func UpdateWarmupWorkers(n int)             { globalManager.warmupWorkers.Set(float64(n)) }

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
