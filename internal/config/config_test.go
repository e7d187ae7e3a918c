package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlex/medfuse/internal/config"
)

// validConfig returns a Config that passes Validate() with every field at its
// service default.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	t.Parallel()
	cases := []int{0, -1, 65536, 100000}
	for _, p := range cases {
		p := p
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Server.Port = p
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_InvalidServerMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.Mode = "production" // not an accepted value
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_Validate_InvalidLogFormat(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestConfig_Validate_MetricsEnabledWithoutNamespace(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics.namespace")
}

func TestConfig_Validate_MetricsDisabledAllowsEmptyNamespace(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Namespace = ""
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_InvalidTaggerBackend(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Backend = "grpc"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.backend")
}

func TestConfig_Validate_InvalidTaggerVariant(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Variants = []string{"simple", "median"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.variants")
}

func TestConfig_Validate_TaggerMinScoreOutOfRange(t *testing.T) {
	t.Parallel()
	cases := []float64{-0.1, 1.5}
	for _, s := range cases {
		s := s
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Tagger.MinScore = s
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tagger.min_score")
		})
	}
}

func TestConfig_Validate_NegativeTaggerTimeout(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Timeout = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.timeout")
}

func TestConfig_Validate_HTTPBackendRequiresEndpoint(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Backend = "http"
	cfg.Tagger.Endpoint = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.endpoint")
}

func TestConfig_Validate_ONNXBackendRequiresModelPath(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Backend = "onnx"
	cfg.Tagger.TokenizerPath = "tokenizer.json"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.model_path")
}

func TestConfig_Validate_ONNXBackendRequiresTokenizerPath(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Backend = "onnx"
	cfg.Tagger.ModelPath = "model.onnx"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.tokenizer_path")
}

func TestConfig_Validate_ONNXBackendWindowStrideBounds(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tagger.Backend = "onnx"
	cfg.Tagger.ModelPath = "model.onnx"
	cfg.Tagger.TokenizerPath = "tokenizer.json"
	cfg.Tagger.MaxSeqLen = 128
	cfg.Tagger.WindowStride = 256
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tagger.window_stride")
}

func TestConfig_Validate_ConfidenceThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	cases := []float64{-0.01, 1.01}
	for _, th := range cases {
		th := th
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Analysis.ConfidenceThreshold = th
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "analysis.confidence_threshold")
		})
	}
}

func TestConfig_Validate_ZeroConfidenceThresholdIsValid(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Analysis.ConfidenceThreshold = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_OverlapFractionOutOfRange(t *testing.T) {
	t.Parallel()
	cases := []float64{0, -0.2, 1.5}
	for _, f := range cases {
		f := f
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Analysis.OverlapFraction = f
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "analysis.overlap_fraction")
		})
	}
}

func TestConfig_Validate_MaxTextCharsLessThanOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Analysis.MaxTextChars = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.max_text_chars")
}

func TestConfig_Validate_MaxBatchTextsLessThanOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Analysis.MaxBatchTexts = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.max_batch_texts")
}

func TestConfig_SubStructs_ZeroValues(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, "", cfg.Server.Mode)
	assert.Equal(t, "", cfg.Log.Level)
	assert.Equal(t, "", cfg.Tagger.Backend)
	assert.Nil(t, cfg.Tagger.Variants)
	assert.Equal(t, 0.0, cfg.Analysis.ConfidenceThreshold)
	assert.Equal(t, "", cfg.Resources.DictionaryPath)
}
