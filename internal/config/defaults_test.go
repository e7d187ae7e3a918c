package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
	assert.Equal(t, []string{"stderr"}, cfg.Log.ErrorOutputPaths)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
	assert.Equal(t, DefaultTaggerBackend, cfg.Tagger.Backend)
	assert.Equal(t, []string{"simple", "max"}, cfg.Tagger.Variants)
	assert.Equal(t, 30*time.Second, cfg.Tagger.Timeout)
	assert.Equal(t, DefaultTaggerMaxSeqLen, cfg.Tagger.MaxSeqLen)
	assert.Equal(t, DefaultOverlapFraction, cfg.Analysis.OverlapFraction)
	assert.Equal(t, DefaultMaxTextChars, cfg.Analysis.MaxTextChars)
	assert.Equal(t, DefaultMaxBatchTexts, cfg.Analysis.MaxBatchTexts)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Log.Level = "debug"
	cfg.Tagger.Backend = "http"
	cfg.Tagger.Endpoint = "http://tagger.internal:9000/v1/tag"
	cfg.Analysis.MaxTextChars = 2500
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http", cfg.Tagger.Backend)
	assert.Equal(t, "http://tagger.internal:9000/v1/tag", cfg.Tagger.Endpoint)
	assert.Equal(t, 2500, cfg.Analysis.MaxTextChars)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

// Zero is a legal explicit value for the threshold and the tagger min-score,
// so ApplyDefaults must leave them alone; the loader defaults them via viper.
func TestApplyDefaults_LeavesMeaningfulZeros(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, 0.0, cfg.Analysis.ConfidenceThreshold)
	assert.Equal(t, 0.0, cfg.Tagger.MinScore)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Analysis.EnablePatterns)
}
