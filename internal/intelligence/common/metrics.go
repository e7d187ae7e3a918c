package common

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// IntelligenceMetrics is the unified telemetry API for the intelligence
// layer. The tagger backends, the analysis pipeline, and the batch processor
// all record through this interface so the underlying implementation
// (Prometheus, in-memory, noop) can be swapped without touching business
// code.
type IntelligenceMetrics interface {
	// RecordInference records a single backend Predict call.
	RecordInference(ctx context.Context, params *InferenceMetricParams)

	// RecordAnalysis records a completed analysis pipeline run.
	RecordAnalysis(ctx context.Context, params *AnalysisMetricParams)

	// RecordBatchProcessing records a batch processing event.
	RecordBatchProcessing(ctx context.Context, params *BatchMetricParams)

	// RecordSourceCandidates records how many candidates a source produced.
	RecordSourceCandidates(ctx context.Context, source string, count int)

	// RecordMergeResolutions records how many overlap conflicts were merged.
	RecordMergeResolutions(ctx context.Context, count int)

	// RecordFilterDrops records entities discarded by the quality filter.
	RecordFilterDrops(ctx context.Context, reason string, count int)

	// RecordCircuitBreakerStateChange records a circuit-breaker transition.
	RecordCircuitBreakerStateChange(ctx context.Context, backendName string, fromState, toState string)

	// RecordModelLoad records a model or resource load at startup.
	RecordModelLoad(ctx context.Context, modelName, version string, durationMs float64, success bool)

	// GetInferenceLatencyHistogram returns the latency histogram for SLO monitoring.
	GetInferenceLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time statistics snapshot.
	GetCurrentStats() *IntelligenceStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	// Observe records a latency sample in milliseconds.
	Observe(durationMs float64)

	// Percentile returns the value at the given percentile (0-100).
	Percentile(p float64) float64

	// Count returns the total number of observed samples.
	Count() int64

	// Sum returns the sum of all observed values.
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// InferenceMetricParams carries the data for a single backend Predict call.
type InferenceMetricParams struct {
	Backend      string  `json:"backend"`
	ModelName    string  `json:"model_name"`
	ModelVersion string  `json:"model_version,omitempty"`
	Variant      string  `json:"variant,omitempty"`
	DurationMs   float64 `json:"duration_ms"`
	Success      bool    `json:"success"`
	TokenCount   int     `json:"token_count,omitempty"`
}

// AnalysisMetricParams carries the data for one full pipeline run.
type AnalysisMetricParams struct {
	DurationMs     float64 `json:"duration_ms"`
	TextChars      int     `json:"text_chars"`
	CandidateCount int     `json:"candidate_count"`
	EntityCount    int     `json:"entity_count"`
	Success        bool    `json:"success"`
	Concurrent     bool    `json:"concurrent"`
}

// BatchMetricParams carries the data for a batch processing event.
type BatchMetricParams struct {
	BatchName         string  `json:"batch_name"`
	TotalItems        int     `json:"total_items"`
	SuccessItems      int     `json:"success_items"`
	FailedItems       int     `json:"failed_items"`
	TimeoutItems      int     `json:"timeout_items"`
	CancelledItems    int     `json:"cancelled_items"`
	TotalDurationMs   float64 `json:"total_duration_ms"`
	AvgItemDurationMs float64 `json:"avg_item_duration_ms"`
	MaxConcurrency    int     `json:"max_concurrency"`
}

// IntelligenceStats is a point-in-time snapshot of intelligence-layer metrics.
type IntelligenceStats struct {
	TotalAnalyses         int64             `json:"total_analyses"`
	TotalEntities         int64             `json:"total_entities"`
	TotalInferences       int64             `json:"total_inferences"`
	SuccessfulInferences  int64             `json:"successful_inferences"`
	FailedInferences      int64             `json:"failed_inferences"`
	AvgInferenceLatencyMs float64           `json:"avg_inference_latency_ms"`
	P50LatencyMs          float64           `json:"p50_latency_ms"`
	P95LatencyMs          float64           `json:"p95_latency_ms"`
	P99LatencyMs          float64           `json:"p99_latency_ms"`
	CandidatesBySource    map[string]int64  `json:"candidates_by_source"`
	MergeResolutions      int64             `json:"merge_resolutions"`
	FilterDrops           int64             `json:"filter_drops"`
	CircuitBreakerStates  map[string]string `json:"circuit_breaker_states"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsPrefix = "medfuse_intelligence_"

var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var entityCountBuckets = []float64{1, 2, 5, 10, 25, 50, 100}

type prometheusIntelligenceMetrics struct {
	inferenceLatency  *prometheus.HistogramVec
	inferenceTotal    *prometheus.CounterVec
	analysisLatency   *prometheus.HistogramVec
	analysisEntities  prometheus.Histogram
	sourceCandidates  *prometheus.CounterVec
	mergeResolutions  prometheus.Counter
	filterDrops       *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	batchItemsTotal   *prometheus.CounterVec
	circuitBreaker    *prometheus.GaugeVec
	modelLoadDuration *prometheus.HistogramVec

	// in-memory tracking for GetCurrentStats / GetInferenceLatencyHistogram
	latencyHist   *latencyHistogram
	totalAnalyses atomic.Int64
	totalEntities atomic.Int64
	totalInf      atomic.Int64
	successInf    atomic.Int64
	failedInf     atomic.Int64
	totalMerges   atomic.Int64
	totalDrops    atomic.Int64
	sourceCounts  sync.Map // source -> *atomic.Int64
	cbStates      sync.Map // backend name -> state string
}

// NewPrometheusIntelligenceMetrics creates a Prometheus-backed metrics
// collector and registers all metrics with the supplied Registerer.
func NewPrometheusIntelligenceMetrics(registerer prometheus.Registerer) (*prometheusIntelligenceMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusIntelligenceMetrics{
		latencyHist: newLatencyHistogram(),
	}

	m.inferenceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "inference_duration_milliseconds",
		Help:    "Histogram of tagger backend inference latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"backend", "model_name", "variant"})

	m.inferenceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "inference_total",
		Help: "Total number of tagger backend inferences.",
	}, []string{"backend", "model_name", "status"})

	m.analysisLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "analysis_duration_milliseconds",
		Help:    "Histogram of full analysis pipeline latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"status"})

	m.analysisEntities = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "analysis_entities",
		Help:    "Histogram of entity counts per analysis.",
		Buckets: entityCountBuckets,
	})

	m.sourceCandidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "source_candidates_total",
		Help: "Total number of candidates produced per source.",
	}, []string{"source"})

	m.mergeResolutions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricsPrefix + "merge_resolutions_total",
		Help: "Total number of overlap conflicts resolved by merging.",
	})

	m.filterDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "filter_drops_total",
		Help: "Total number of entities discarded by the quality filter.",
	}, []string{"reason"})

	m.batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "batch_processing_duration_milliseconds",
		Help:    "Histogram of batch processing duration in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"batch_name"})

	m.batchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batch_items_total",
		Help: "Total number of items processed in batches.",
	}, []string{"batch_name", "status"})

	m.circuitBreaker = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=half_open, 2=open).",
	}, []string{"backend"})

	m.modelLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "model_load_duration_milliseconds",
		Help:    "Histogram of model and resource load duration in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"model_name", "version", "status"})

	collectors := []prometheus.Collector{
		m.inferenceLatency,
		m.inferenceTotal,
		m.analysisLatency,
		m.analysisEntities,
		m.sourceCandidates,
		m.mergeResolutions,
		m.filterDrops,
		m.batchDuration,
		m.batchItemsTotal,
		m.circuitBreaker,
		m.modelLoadDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *prometheusIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	status := "success"
	if !p.Success {
		status = "failure"
	}
	variant := p.Variant
	if variant == "" {
		variant = VariantSimple
	}

	m.inferenceLatency.WithLabelValues(p.Backend, p.ModelName, variant).Observe(p.DurationMs)
	m.inferenceTotal.WithLabelValues(p.Backend, p.ModelName, status).Inc()

	m.latencyHist.Observe(p.DurationMs)
	m.totalInf.Add(1)
	if p.Success {
		m.successInf.Add(1)
	} else {
		m.failedInf.Add(1)
	}
}

func (m *prometheusIntelligenceMetrics) RecordAnalysis(_ context.Context, p *AnalysisMetricParams) {
	if p == nil {
		return
	}
	status := "success"
	if !p.Success {
		status = "failure"
	}
	m.analysisLatency.WithLabelValues(status).Observe(p.DurationMs)
	m.analysisEntities.Observe(float64(p.EntityCount))

	m.totalAnalyses.Add(1)
	m.totalEntities.Add(int64(p.EntityCount))
}

func (m *prometheusIntelligenceMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.batchDuration.WithLabelValues(p.BatchName).Observe(p.TotalDurationMs)
	m.batchItemsTotal.WithLabelValues(p.BatchName, "success").Add(float64(p.SuccessItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "failed").Add(float64(p.FailedItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "timeout").Add(float64(p.TimeoutItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "cancelled").Add(float64(p.CancelledItems))
}

func (m *prometheusIntelligenceMetrics) RecordSourceCandidates(_ context.Context, source string, count int) {
	if count < 0 {
		return
	}
	m.sourceCandidates.WithLabelValues(source).Add(float64(count))

	val, _ := m.sourceCounts.LoadOrStore(source, &atomic.Int64{})
	val.(*atomic.Int64).Add(int64(count))
}

func (m *prometheusIntelligenceMetrics) RecordMergeResolutions(_ context.Context, count int) {
	if count <= 0 {
		return
	}
	m.mergeResolutions.Add(float64(count))
	m.totalMerges.Add(int64(count))
}

func (m *prometheusIntelligenceMetrics) RecordFilterDrops(_ context.Context, reason string, count int) {
	if count <= 0 {
		return
	}
	m.filterDrops.WithLabelValues(reason).Add(float64(count))
	m.totalDrops.Add(int64(count))
}

func (m *prometheusIntelligenceMetrics) RecordCircuitBreakerStateChange(_ context.Context, backendName string, _, toState string) {
	m.cbStates.Store(backendName, toState)
	m.circuitBreaker.WithLabelValues(backendName).Set(circuitBreakerStateToFloat(toState))
}

func (m *prometheusIntelligenceMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.modelLoadDuration.WithLabelValues(modelName, version, status).Observe(durationMs)
}

func (m *prometheusIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *prometheusIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	total := m.totalInf.Load()

	var avgLatency float64
	if total > 0 {
		avgLatency = m.latencyHist.Sum() / float64(total)
	}

	sources := make(map[string]int64)
	m.sourceCounts.Range(func(key, value any) bool {
		sources[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	cbStates := make(map[string]string)
	m.cbStates.Range(func(key, value any) bool {
		cbStates[key.(string)] = value.(string)
		return true
	})

	return &IntelligenceStats{
		TotalAnalyses:         m.totalAnalyses.Load(),
		TotalEntities:         m.totalEntities.Load(),
		TotalInferences:       total,
		SuccessfulInferences:  m.successInf.Load(),
		FailedInferences:      m.failedInf.Load(),
		AvgInferenceLatencyMs: avgLatency,
		P50LatencyMs:          m.latencyHist.Percentile(50),
		P95LatencyMs:          m.latencyHist.Percentile(95),
		P99LatencyMs:          m.latencyHist.Percentile(99),
		CandidatesBySource:    sources,
		MergeResolutions:      m.totalMerges.Load(),
		FilterDrops:           m.totalDrops.Load(),
		CircuitBreakerStates:  cbStates,
	}
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopIntelligenceMetrics struct{}

// NewNoopIntelligenceMetrics returns a no-op metrics implementation.
func NewNoopIntelligenceMetrics() *noopIntelligenceMetrics {
	return &noopIntelligenceMetrics{}
}

func (n *noopIntelligenceMetrics) RecordInference(context.Context, *InferenceMetricParams)    {}
func (n *noopIntelligenceMetrics) RecordAnalysis(context.Context, *AnalysisMetricParams)      {}
func (n *noopIntelligenceMetrics) RecordBatchProcessing(context.Context, *BatchMetricParams)  {}
func (n *noopIntelligenceMetrics) RecordSourceCandidates(context.Context, string, int)        {}
func (n *noopIntelligenceMetrics) RecordMergeResolutions(context.Context, int)                {}
func (n *noopIntelligenceMetrics) RecordFilterDrops(context.Context, string, int)             {}
func (n *noopIntelligenceMetrics) RecordCircuitBreakerStateChange(context.Context, string, string, string) {
}
func (n *noopIntelligenceMetrics) RecordModelLoad(context.Context, string, string, float64, bool) {}

func (n *noopIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return newLatencyHistogram()
}

func (n *noopIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	return &IntelligenceStats{
		CandidatesBySource:   map[string]int64{},
		CircuitBreakerStates: map[string]string{},
	}
}

// ---------------------------------------------------------------------------
// In-memory implementation (for testing)
// ---------------------------------------------------------------------------

type inMemoryIntelligenceMetrics struct {
	mu sync.Mutex

	inferences   []*InferenceMetricParams
	analyses     []*AnalysisMetricParams
	batches      []*BatchMetricParams
	sourceCounts map[string]int64
	mergeCount   int64
	dropCounts   map[string]int64
	modelLoads   []modelLoadRecord
	cbStates     map[string]string
	latencyHist  *latencyHistogram
}

type modelLoadRecord struct {
	ModelName  string
	Version    string
	DurationMs float64
	Success    bool
	Timestamp  time.Time
}

// NewInMemoryIntelligenceMetrics returns an in-memory metrics implementation
// suitable for unit tests.
func NewInMemoryIntelligenceMetrics() *inMemoryIntelligenceMetrics {
	return &inMemoryIntelligenceMetrics{
		sourceCounts: make(map[string]int64),
		dropCounts:   make(map[string]int64),
		cbStates:     make(map[string]string),
		latencyHist:  newLatencyHistogram(),
	}
}

func (m *inMemoryIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.inferences = append(m.inferences, &cp)
	m.latencyHist.Observe(p.DurationMs)
}

func (m *inMemoryIntelligenceMetrics) RecordAnalysis(_ context.Context, p *AnalysisMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.analyses = append(m.analyses, &cp)
}

func (m *inMemoryIntelligenceMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.batches = append(m.batches, &cp)
}

func (m *inMemoryIntelligenceMetrics) RecordSourceCandidates(_ context.Context, source string, count int) {
	if count < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceCounts[source] += int64(count)
}

func (m *inMemoryIntelligenceMetrics) RecordMergeResolutions(_ context.Context, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeCount += int64(count)
}

func (m *inMemoryIntelligenceMetrics) RecordFilterDrops(_ context.Context, reason string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropCounts[reason] += int64(count)
}

func (m *inMemoryIntelligenceMetrics) RecordCircuitBreakerStateChange(_ context.Context, backendName, _, toState string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbStates[backendName] = toState
}

func (m *inMemoryIntelligenceMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoads = append(m.modelLoads, modelLoadRecord{
		ModelName:  modelName,
		Version:    version,
		DurationMs: durationMs,
		Success:    success,
		Timestamp:  time.Now(),
	})
}

func (m *inMemoryIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *inMemoryIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := int64(len(m.inferences))
	var success, failed int64
	var sumLatency float64
	for _, inf := range m.inferences {
		if inf.Success {
			success++
		} else {
			failed++
		}
		sumLatency += inf.DurationMs
	}

	var avgLatency float64
	if total > 0 {
		avgLatency = sumLatency / float64(total)
	}

	var totalEntities int64
	for _, a := range m.analyses {
		totalEntities += int64(a.EntityCount)
	}

	var totalDrops int64
	for _, v := range m.dropCounts {
		totalDrops += v
	}

	sources := make(map[string]int64, len(m.sourceCounts))
	for k, v := range m.sourceCounts {
		sources[k] = v
	}
	cbCopy := make(map[string]string, len(m.cbStates))
	for k, v := range m.cbStates {
		cbCopy[k] = v
	}

	return &IntelligenceStats{
		TotalAnalyses:         int64(len(m.analyses)),
		TotalEntities:         totalEntities,
		TotalInferences:       total,
		SuccessfulInferences:  success,
		FailedInferences:      failed,
		AvgInferenceLatencyMs: avgLatency,
		P50LatencyMs:          m.latencyHist.Percentile(50),
		P95LatencyMs:          m.latencyHist.Percentile(95),
		P99LatencyMs:          m.latencyHist.Percentile(99),
		CandidatesBySource:    sources,
		MergeResolutions:      m.mergeCount,
		FilterDrops:           totalDrops,
		CircuitBreakerStates:  cbCopy,
	}
}

// GetRecordedInferences returns a copy of all recorded inference params.
func (m *inMemoryIntelligenceMetrics) GetRecordedInferences() []*InferenceMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*InferenceMetricParams, len(m.inferences))
	for i, p := range m.inferences {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetRecordedAnalyses returns a copy of all recorded analysis params.
func (m *inMemoryIntelligenceMetrics) GetRecordedAnalyses() []*AnalysisMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AnalysisMetricParams, len(m.analyses))
	for i, p := range m.analyses {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetRecordedBatches returns a copy of all recorded batch params.
func (m *inMemoryIntelligenceMetrics) GetRecordedBatches() []*BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*BatchMetricParams, len(m.batches))
	for i, p := range m.batches {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetSourceCandidates returns a copy of the per-source candidate counts.
func (m *inMemoryIntelligenceMetrics) GetSourceCandidates() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.sourceCounts))
	for k, v := range m.sourceCounts {
		out[k] = v
	}
	return out
}

// GetMergeResolutions returns the total number of recorded merges.
func (m *inMemoryIntelligenceMetrics) GetMergeResolutions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeCount
}

// GetFilterDrops returns a copy of the per-reason drop counts.
func (m *inMemoryIntelligenceMetrics) GetFilterDrops() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.dropCounts))
	for k, v := range m.dropCounts {
		out[k] = v
	}
	return out
}

// GetModelLoads returns a copy of all model load records.
func (m *inMemoryIntelligenceMetrics) GetModelLoads() []modelLoadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]modelLoadRecord, len(m.modelLoads))
	copy(out, m.modelLoads)
	return out
}

// GetCircuitBreakerStates returns a copy of the circuit-breaker state map.
func (m *inMemoryIntelligenceMetrics) GetCircuitBreakerStates() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.cbStates))
	for k, v := range m.cbStates {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// latencyHistogram
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.RWMutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{
		samples: make([]float64, 0, 1024),
	}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

// Percentile returns the value at percentile p (0-100) using linear
// interpolation between the two nearest ranks.
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.RLock()
	n := len(h.samples)
	if n == 0 {
		h.mu.RUnlock()
		return 0
	}

	// Sort lazily; upgrade to the write lock only when needed.
	if !h.sorted {
		h.mu.RUnlock()
		h.mu.Lock()
		if !h.sorted {
			sort.Float64s(h.samples)
			h.sorted = true
		}
		h.mu.Unlock()
		h.mu.RLock()
		n = len(h.samples)
		if n == 0 {
			h.mu.RUnlock()
			return 0
		}
	}

	defer h.mu.RUnlock()

	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}

	// PERCENTILE.INC formula with linear interpolation.
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[upper]-h.samples[lower])
}

func (h *latencyHistogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func circuitBreakerStateToFloat(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// compile-time interface checks
var (
	_ IntelligenceMetrics = (*prometheusIntelligenceMetrics)(nil)
	_ IntelligenceMetrics = (*noopIntelligenceMetrics)(nil)
	_ IntelligenceMetrics = (*inMemoryIntelligenceMetrics)(nil)
	_ LatencyHistogram    = (*latencyHistogram)(nil)
)
