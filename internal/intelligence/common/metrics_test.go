package common

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewPrometheusIntelligenceMetrics_Success(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewPrometheusIntelligenceMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)

	_, err = NewPrometheusIntelligenceMetrics(registry)
	assert.Error(t, err)
}

func TestPrometheus_RecordInference(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)

	ctx := context.Background()
	m.RecordInference(ctx, &InferenceMetricParams{
		Backend:    string(BackendTypeMock),
		ModelName:  "medner-it",
		Variant:    VariantSimple,
		DurationMs: 100,
		Success:    true,
	})
	m.RecordInference(ctx, &InferenceMetricParams{
		Backend:    string(BackendTypeMock),
		ModelName:  "medner-it",
		Variant:    VariantMax,
		DurationMs: 50,
		Success:    false,
	})

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalInferences)
	assert.Equal(t, int64(1), stats.SuccessfulInferences)
	assert.Equal(t, int64(1), stats.FailedInferences)
	assert.InDelta(t, 75.0, stats.AvgInferenceLatencyMs, 0.001)
	assert.Equal(t, int64(2), m.GetInferenceLatencyHistogram().Count())
}

func TestPrometheus_RecordAnalysisAndCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)

	ctx := context.Background()
	m.RecordAnalysis(ctx, &AnalysisMetricParams{DurationMs: 12, TextChars: 80, EntityCount: 3, Success: true})
	m.RecordAnalysis(ctx, &AnalysisMetricParams{DurationMs: 7, TextChars: 20, EntityCount: 1, Success: true})
	m.RecordSourceCandidates(ctx, "PATTERN", 4)
	m.RecordSourceCandidates(ctx, "DICTIONARY", 2)
	m.RecordMergeResolutions(ctx, 3)
	m.RecordFilterDrops(ctx, "too_short", 1)
	m.RecordCircuitBreakerStateChange(ctx, "http-backend", "closed", "open")

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalAnalyses)
	assert.Equal(t, int64(4), stats.TotalEntities)
	assert.Equal(t, int64(4), stats.CandidatesBySource["PATTERN"])
	assert.Equal(t, int64(2), stats.CandidatesBySource["DICTIONARY"])
	assert.Equal(t, int64(3), stats.MergeResolutions)
	assert.Equal(t, int64(1), stats.FilterDrops)
	assert.Equal(t, "open", stats.CircuitBreakerStates["http-backend"])
}

func TestInMemory_RecordInference(t *testing.T) {
	m := NewInMemoryIntelligenceMetrics()
	ctx := context.Background()

	m.RecordInference(ctx, &InferenceMetricParams{
		ModelName:  "medner-it",
		DurationMs: 100,
		Success:    true,
	})

	recorded := m.GetRecordedInferences()
	assert.Len(t, recorded, 1)
	assert.Equal(t, "medner-it", recorded[0].ModelName)

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(1), stats.TotalInferences)
	assert.Equal(t, int64(1), stats.SuccessfulInferences)
}

func TestInMemory_SourceCandidatesAndDrops(t *testing.T) {
	m := NewInMemoryIntelligenceMetrics()
	ctx := context.Background()

	m.RecordSourceCandidates(ctx, "MODEL_SIMPLE", 5)
	m.RecordSourceCandidates(ctx, "MODEL_SIMPLE", 2)
	m.RecordSourceCandidates(ctx, "MORPHOLOGICAL", 1)
	m.RecordMergeResolutions(ctx, 2)
	m.RecordFilterDrops(ctx, "too_short", 1)
	m.RecordFilterDrops(ctx, "no_letters", 2)

	sources := m.GetSourceCandidates()
	assert.Equal(t, int64(7), sources["MODEL_SIMPLE"])
	assert.Equal(t, int64(1), sources["MORPHOLOGICAL"])
	assert.Equal(t, int64(2), m.GetMergeResolutions())

	drops := m.GetFilterDrops()
	assert.Equal(t, int64(1), drops["too_short"])
	assert.Equal(t, int64(2), drops["no_letters"])

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(3), stats.FilterDrops)
}

func TestInMemory_ModelLoadsAndBreakerStates(t *testing.T) {
	m := NewInMemoryIntelligenceMetrics()
	ctx := context.Background()

	m.RecordModelLoad(ctx, "medner-it", "1.2", 420, true)
	m.RecordCircuitBreakerStateChange(ctx, "analyze-batch", "closed", "half_open")

	loads := m.GetModelLoads()
	assert.Len(t, loads, 1)
	assert.Equal(t, "medner-it", loads[0].ModelName)
	assert.True(t, loads[0].Success)

	states := m.GetCircuitBreakerStates()
	assert.Equal(t, "half_open", states["analyze-batch"])
}

func TestLatencyHistogram_Percentile(t *testing.T) {
	h := newLatencyHistogram()
	for i := 1; i <= 100; i++ {
		h.Observe(float64(i))
	}

	assert.Equal(t, int64(100), h.Count())
	assert.InDelta(t, 5050.0, h.Sum(), 0.001)
	assert.InDelta(t, 1.0, h.Percentile(0), 0.001)
	assert.InDelta(t, 50.5, h.Percentile(50), 0.001)
	assert.InDelta(t, 95.05, h.Percentile(95), 0.001)
	assert.InDelta(t, 99.01, h.Percentile(99), 0.001)
	assert.InDelta(t, 100.0, h.Percentile(100), 0.001)
}

func TestLatencyHistogram_Empty(t *testing.T) {
	h := newLatencyHistogram()
	assert.Equal(t, int64(0), h.Count())
	assert.Equal(t, 0.0, h.Percentile(50))
}

func TestCircuitBreakerStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, circuitBreakerStateToFloat("closed"))
	assert.Equal(t, 1.0, circuitBreakerStateToFloat("half_open"))
	assert.Equal(t, 2.0, circuitBreakerStateToFloat("open"))
	assert.Equal(t, -1.0, circuitBreakerStateToFloat("bogus"))
}

func TestNoop_AllMethods_NoPanic(t *testing.T) {
	m := NewNoopIntelligenceMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordInference(ctx, &InferenceMetricParams{})
		m.RecordAnalysis(ctx, &AnalysisMetricParams{})
		m.RecordBatchProcessing(ctx, &BatchMetricParams{})
		m.RecordSourceCandidates(ctx, "PATTERN", 1)
		m.RecordMergeResolutions(ctx, 1)
		m.RecordFilterDrops(ctx, "too_short", 1)
		m.RecordCircuitBreakerStateChange(ctx, "backend", "closed", "open")
		m.RecordModelLoad(ctx, "model", "v1", 100, true)
		m.GetInferenceLatencyHistogram()
		m.GetCurrentStats()
	})
}
