package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Analysis API Layer
	AnalyzeRequestsTotal CounterVec
	AnalyzeDuration      HistogramVec
	AnalyzeTextChars     HistogramVec
	EntitiesReturned     HistogramVec
	BatchRequestsTotal   CounterVec
	BatchSize            HistogramVec
	BatchDuration        HistogramVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalyzeDurationBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultSizeBuckets            = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultTextCharsBuckets       = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	DefaultEntityCountBuckets     = []float64{0, 1, 2, 5, 10, 20, 50, 100}
	DefaultBatchSizeBuckets       = []float64{1, 5, 10, 25, 50, 100}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Analysis API
	m.AnalyzeRequestsTotal = collector.RegisterCounter("analyze_requests_total", "Analyze requests", "status")
	m.AnalyzeDuration = collector.RegisterHistogram("analyze_duration_seconds", "Single-text analysis duration", DefaultAnalyzeDurationBuckets, "status")
	m.AnalyzeTextChars = collector.RegisterHistogram("analyze_text_chars", "Analyzed text length in codepoints", DefaultTextCharsBuckets)
	m.EntitiesReturned = collector.RegisterHistogram("analyze_entities_returned", "Entities returned per analysis", DefaultEntityCountBuckets)
	m.BatchRequestsTotal = collector.RegisterCounter("batch_requests_total", "Batch analyze requests", "status")
	m.BatchSize = collector.RegisterHistogram("batch_size_texts", "Texts per batch request", DefaultBatchSizeBuckets)
	m.BatchDuration = collector.RegisterHistogram("batch_duration_seconds", "Batch analysis duration", DefaultHTTPDurationBuckets)

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// Helpers. All tolerate a nil AppMetrics so callers need no guards.

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if metrics == nil {
		return
	}
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordAnalyze(metrics *AppMetrics, success bool, duration time.Duration, textChars, entityCount int) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.AnalyzeRequestsTotal.WithLabelValues(status).Inc()
	metrics.AnalyzeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if success {
		metrics.AnalyzeTextChars.WithLabelValues().Observe(float64(textChars))
		metrics.EntitiesReturned.WithLabelValues().Observe(float64(entityCount))
	}
}

func RecordBatch(metrics *AppMetrics, success bool, size int, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.BatchRequestsTotal.WithLabelValues(status).Inc()
	metrics.BatchSize.WithLabelValues().Observe(float64(size))
	metrics.BatchDuration.WithLabelValues().Observe(duration.Seconds())
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
