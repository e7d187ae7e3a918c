package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlex/medfuse/internal/config"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	monitoring "github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// testConfig returns a complete config with the mock backend and every rule
// source enabled, matching what LoadFromEnv produces with no overrides.
func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Metrics.Enabled = true
	cfg.Tagger.MinScore = config.DefaultTaggerMinScore
	cfg.Analysis.ConfidenceThreshold = config.DefaultConfidenceThreshold
	cfg.Analysis.EnablePatterns = true
	cfg.Analysis.EnableDictionary = true
	cfg.Analysis.EnableMorphology = true
	cfg.Analysis.EnableContextualBoost = true
	cfg.Analysis.ConcurrentSources = true
	return cfg
}

func TestBuildEngine_MockBackend(t *testing.T) {
	engine, err := BuildEngine(testConfig(), logging.NewNopLogger(), nil)
	require.NoError(t, err)
	require.NotNil(t, engine)
	defer engine.Shutdown(context.Background())

	assert.Equal(t, []string{TaggerBackendName}, engine.Registry.List())

	result, err := engine.Pipeline.Analyze(context.Background(),
		"Il paziente presenta forti mal di testa e nausea persistente.")
	require.NoError(t, err)
	assert.Greater(t, result.TotalEntities, 0)
}

func TestBuildEngine_NoneBackendRunsRulesOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Tagger.Backend = "none"

	engine, err := BuildEngine(cfg, logging.NewNopLogger(), nil)
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	assert.Empty(t, engine.Registry.List())

	result, err := engine.Pipeline.Analyze(context.Background(),
		"È stato prescritto paracetamolo per la febbre.")
	require.NoError(t, err)
	assert.Greater(t, result.TotalEntities, 0)
	for _, e := range result.Entities {
		assert.NotContains(t, string(e.Source), "model")
	}
}

func TestBuildEngine_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Tagger.Backend = "tpu"

	engine, err := BuildEngine(cfg, logging.NewNopLogger(), nil)
	require.Error(t, err)
	assert.Nil(t, engine)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestBuildEngine_NilConfig(t *testing.T) {
	engine, err := BuildEngine(nil, logging.NewNopLogger(), nil)
	require.Error(t, err)
	assert.Nil(t, engine)
}

func TestBuildEngine_BadResourcePath(t *testing.T) {
	cfg := testConfig()
	cfg.Resources.PatternsPath = "testdata/does-not-exist.yaml"

	engine, err := BuildEngine(cfg, logging.NewNopLogger(), nil)
	require.Error(t, err)
	assert.Nil(t, engine)
}

func TestBuildEngine_WithCollector(t *testing.T) {
	collector, err := monitoring.NewMetricsCollector(monitoring.CollectorConfig{
		Namespace: "medfuse_assembly_test",
	}, logging.NewNopLogger())
	require.NoError(t, err)

	engine, err := BuildEngine(testConfig(), logging.NewNopLogger(), collector)
	require.NoError(t, err)
	defer engine.Shutdown(context.Background())

	result, err := engine.Pipeline.Analyze(context.Background(),
		"Richiesto un esame del sangue per il controllo della glicemia.")
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestEngine_ShutdownTwice(t *testing.T) {
	engine, err := BuildEngine(testConfig(), logging.NewNopLogger(), nil)
	require.NoError(t, err)

	require.NoError(t, engine.Shutdown(context.Background()))
	// Registry close is idempotent; a second shutdown must not panic.
	assert.NotPanics(t, func() { _ = engine.Shutdown(context.Background()) })
}
