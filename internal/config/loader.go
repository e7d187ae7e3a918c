package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all service settings.
const envPrefix = "MEDFUSE"

// newViper builds a pre-configured Viper instance with the service's standard
// settings: YAML file type, MEDFUSE_ env prefix, automatic env binding, and a
// key replacer that maps "." → "_" so that nested keys like "tagger.min_score"
// resolve to "MEDFUSE_TAGGER_MIN_SCORE".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerViperDefaults(v)
	return v
}

// registerViperDefaults declares the full default table with viper.  Viper
// only unmarshals keys it knows about (from the config file or registered
// defaults), so every key must appear here for MEDFUSE_* environment
// variables to work without a config file.  This is also the only place that
// can default booleans and floats whose Go zero value is a legal explicit
// setting (for example analysis.confidence_threshold, where 0 disables the
// cut-off): after unmarshalling, false / 0 and "absent" are indistinguishable.
func registerViperDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Log
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_output_paths", []string{"stderr"})

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.subsystem", "")
	v.SetDefault("metrics.enable_process_metrics", true)
	v.SetDefault("metrics.enable_go_metrics", true)

	// Tagger
	v.SetDefault("tagger.backend", DefaultTaggerBackend)
	v.SetDefault("tagger.variants", []string{"simple", "max"})
	v.SetDefault("tagger.min_score", DefaultTaggerMinScore)
	v.SetDefault("tagger.timeout", 30*time.Second)
	v.SetDefault("tagger.endpoint", DefaultTaggerEndpoint)
	v.SetDefault("tagger.api_key", "")
	v.SetDefault("tagger.max_retries", 3)
	v.SetDefault("tagger.retry_backoff", 250*time.Millisecond)
	v.SetDefault("tagger.model_path", "")
	v.SetDefault("tagger.tokenizer_path", "")
	v.SetDefault("tagger.ort_library_path", "")
	v.SetDefault("tagger.max_seq_len", DefaultTaggerMaxSeqLen)
	v.SetDefault("tagger.window_stride", DefaultTaggerWindowStride)

	// Analysis
	v.SetDefault("analysis.confidence_threshold", DefaultConfidenceThreshold)
	v.SetDefault("analysis.enable_patterns", true)
	v.SetDefault("analysis.enable_dictionary", true)
	v.SetDefault("analysis.enable_morphology", true)
	v.SetDefault("analysis.enable_contextual_boost", true)
	v.SetDefault("analysis.concurrent_sources", true)
	v.SetDefault("analysis.overlap_fraction", DefaultOverlapFraction)
	v.SetDefault("analysis.max_text_chars", DefaultMaxTextChars)
	v.SetDefault("analysis.max_batch_texts", DefaultMaxBatchTexts)

	// Resources
	v.SetDefault("resources.patterns_path", "")
	v.SetDefault("resources.dictionary_path", "")
	v.SetDefault("resources.morphology_path", "")
	v.SetDefault("resources.boosts_path", "")
}

// Load reads the YAML file at configPath, merges any MEDFUSE_* environment
// variable overrides, applies service defaults for unset fields, and
// validates the result.  It returns a fully-populated *Config or a
// descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %q not found", configPath))
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("config file %q could not be read", configPath)).
			WithDetail(err.Error())
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MEDFUSE_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	MEDFUSE_<SECTION>_<FIELD>   e.g.  MEDFUSE_SERVER_PORT, MEDFUSE_TAGGER_BACKEND
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file; rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid,
			"configuration could not be decoded").WithDetail(err.Error())
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid,
			"configuration validation failed").WithDetail(err.Error())
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and the analysis
// confidence threshold; callers are responsible for applying only the safe
// subset of changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called and
// the previous configuration stays in effect.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; errors are ignored here, callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// Config change produced an invalid config; skip the callback to
			// prevent the application from entering a broken state.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
