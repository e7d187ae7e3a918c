package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "medfuse"

	DefaultTaggerBackend      = "mock"
	DefaultTaggerEndpoint     = "http://localhost:8501/v1/tag"
	DefaultTaggerMinScore     = 0.2
	DefaultTaggerMaxSeqLen    = 256
	DefaultTaggerWindowStride = 64

	DefaultConfidenceThreshold = 0.2
	DefaultOverlapFraction     = 0.5
	DefaultMaxTextChars        = 10000
	DefaultMaxBatchTexts       = 100
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
//
// Boolean toggles and floats whose zero value is meaningful (such as
// analysis.confidence_threshold, where 0 disables the cut-off) are not
// touched here; the loader registers those defaults with viper instead, where
// "key absent" and "key set to zero" are distinguishable.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20 // 1 MiB
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	// Enabled is a bool; false is a valid explicit value so we cannot
	// distinguish "not set" from "set to false".  The loader defaults it to
	// true at the viper layer.

	// ── Tagger ────────────────────────────────────────────────────────────────
	if cfg.Tagger.Backend == "" {
		cfg.Tagger.Backend = DefaultTaggerBackend
	}
	if len(cfg.Tagger.Variants) == 0 {
		cfg.Tagger.Variants = []string{"simple", "max"}
	}
	if cfg.Tagger.Timeout == 0 {
		cfg.Tagger.Timeout = 30 * time.Second
	}
	if cfg.Tagger.Endpoint == "" {
		cfg.Tagger.Endpoint = DefaultTaggerEndpoint
	}
	if cfg.Tagger.MaxRetries == 0 {
		cfg.Tagger.MaxRetries = 3
	}
	if cfg.Tagger.RetryBackoff == 0 {
		cfg.Tagger.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.Tagger.MaxSeqLen == 0 {
		cfg.Tagger.MaxSeqLen = DefaultTaggerMaxSeqLen
	}
	if cfg.Tagger.WindowStride == 0 {
		cfg.Tagger.WindowStride = DefaultTaggerWindowStride
	}
	// MinScore is a float; 0 is a valid explicit value (keep every tagger
	// candidate) so it is defaulted at the viper layer, not here.

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.OverlapFraction == 0 {
		cfg.Analysis.OverlapFraction = DefaultOverlapFraction
	}
	if cfg.Analysis.MaxTextChars == 0 {
		cfg.Analysis.MaxTextChars = DefaultMaxTextChars
	}
	if cfg.Analysis.MaxBatchTexts == 0 {
		cfg.Analysis.MaxBatchTexts = DefaultMaxBatchTexts
	}
	// ConfidenceThreshold (0 disables the cut-off) and the enable_* toggles
	// are defaulted at the viper layer for the same reason as Metrics.Enabled.
}
