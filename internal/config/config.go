// Package config defines all configuration structures for the MedFuse
// clinical NER service.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.  The field layout mirrors
// the logging package so that main() can hand it over without translation.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Namespace            string `mapstructure:"namespace"`
	Subsystem            string `mapstructure:"subsystem"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
}

// TaggerConfig holds statistical-tagger backend parameters.  Exactly one
// backend is active at a time; the http and onnx field groups are only
// consulted when the matching backend is selected.
type TaggerConfig struct {
	Backend  string        `mapstructure:"backend"`  // "http" | "onnx" | "mock" | "none"
	Variants []string      `mapstructure:"variants"` // "simple" | "max" | "average" | "first"
	MinScore float64       `mapstructure:"min_score"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// HTTP backend.
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// ONNX backend.
	ModelPath      string `mapstructure:"model_path"`
	TokenizerPath  string `mapstructure:"tokenizer_path"`
	OrtLibraryPath string `mapstructure:"ort_library_path"`
	MaxSeqLen      int    `mapstructure:"max_seq_len"`
	WindowStride   int    `mapstructure:"window_stride"`
}

// AnalysisConfig holds entity-analysis pipeline parameters.
type AnalysisConfig struct {
	ConfidenceThreshold   float64 `mapstructure:"confidence_threshold"`
	EnablePatterns        bool    `mapstructure:"enable_patterns"`
	EnableDictionary      bool    `mapstructure:"enable_dictionary"`
	EnableMorphology      bool    `mapstructure:"enable_morphology"`
	EnableContextualBoost bool    `mapstructure:"enable_contextual_boost"`
	ConcurrentSources     bool    `mapstructure:"concurrent_sources"`
	OverlapFraction       float64 `mapstructure:"overlap_fraction"`
	MaxTextChars          int     `mapstructure:"max_text_chars"`
	MaxBatchTexts         int     `mapstructure:"max_batch_texts"`
}

// ResourcesConfig holds optional override paths for the lexical resources
// that ship compiled into the binary.  An empty path means "use the built-in
// resource"; a non-empty path that cannot be loaded is fatal at startup.
type ResourcesConfig struct {
	PatternsPath   string `mapstructure:"patterns_path"`
	DictionaryPath string `mapstructure:"dictionary_path"`
	MorphologyPath string `mapstructure:"morphology_path"`
	BoostsPath     string `mapstructure:"boosts_path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire service.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tagger    TaggerConfig    `mapstructure:"tagger"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Resources ResourcesConfig `mapstructure:"resources"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	// Tagger
	switch c.Tagger.Backend {
	case "http", "onnx", "mock", "none":
	default:
		return fmt.Errorf("config: tagger.backend %q is invalid; expected http|onnx|mock|none", c.Tagger.Backend)
	}
	for _, variant := range c.Tagger.Variants {
		switch variant {
		case "simple", "max", "average", "first":
		default:
			return fmt.Errorf("config: tagger.variants entry %q is invalid; expected simple|max|average|first", variant)
		}
	}
	if c.Tagger.MinScore < 0 || c.Tagger.MinScore > 1 {
		return fmt.Errorf("config: tagger.min_score %v is out of range [0, 1]", c.Tagger.MinScore)
	}
	if c.Tagger.Timeout < 0 {
		return fmt.Errorf("config: tagger.timeout must not be negative, got %v", c.Tagger.Timeout)
	}
	if c.Tagger.Backend == "http" && c.Tagger.Endpoint == "" {
		return fmt.Errorf("config: tagger.endpoint is required when tagger.backend is \"http\"")
	}
	if c.Tagger.Backend == "onnx" {
		if c.Tagger.ModelPath == "" {
			return fmt.Errorf("config: tagger.model_path is required when tagger.backend is \"onnx\"")
		}
		if c.Tagger.TokenizerPath == "" {
			return fmt.Errorf("config: tagger.tokenizer_path is required when tagger.backend is \"onnx\"")
		}
		if c.Tagger.MaxSeqLen < 1 {
			return fmt.Errorf("config: tagger.max_seq_len must be ≥ 1, got %d", c.Tagger.MaxSeqLen)
		}
		if c.Tagger.WindowStride < 1 || c.Tagger.WindowStride > c.Tagger.MaxSeqLen {
			return fmt.Errorf("config: tagger.window_stride must be in [1, max_seq_len], got %d", c.Tagger.WindowStride)
		}
	}

	// Analysis
	if c.Analysis.ConfidenceThreshold < 0 || c.Analysis.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: analysis.confidence_threshold %v is out of range [0, 1]", c.Analysis.ConfidenceThreshold)
	}
	if c.Analysis.OverlapFraction <= 0 || c.Analysis.OverlapFraction > 1 {
		return fmt.Errorf("config: analysis.overlap_fraction %v is out of range (0, 1]", c.Analysis.OverlapFraction)
	}
	if c.Analysis.MaxTextChars < 1 {
		return fmt.Errorf("config: analysis.max_text_chars must be ≥ 1, got %d", c.Analysis.MaxTextChars)
	}
	if c.Analysis.MaxBatchTexts < 1 {
		return fmt.Errorf("config: analysis.max_batch_texts must be ≥ 1, got %d", c.Analysis.MaxBatchTexts)
	}

	return nil
}
