// Package application is the composition layer of the service.  It turns a
// validated configuration tree into a running analysis engine; the API
// server and the CLI both build their pipelines here so backend selection
// and resource loading exist exactly once.
package application

import (
	"context"
	"fmt"

	"github.com/clinlex/medfuse/internal/config"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	monitoring "github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlex/medfuse/internal/intelligence/common"
	"github.com/clinlex/medfuse/internal/intelligence/medner"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// TaggerBackendName is the registry name of the model backend. The
// readiness probe reports backend health under this name.
const TaggerBackendName = "tagger"

// Engine bundles an assembled pipeline with the backend registry that owns
// the model resources. Shut the engine down when done with it.
type Engine struct {
	Pipeline *medner.AnalysisPipeline
	Registry common.BackendRegistry

	logger logging.Logger
}

// BuildEngine assembles the analysis engine from configuration: model
// backend, registry, statistical tagger, lexical resources and the
// pipeline itself. collector may be nil, in which case intelligence
// metrics are discarded.
func BuildEngine(cfg *config.Config, logger logging.Logger, collector monitoring.MetricsCollector) (*Engine, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "engine requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var metrics common.IntelligenceMetrics
	if collector != nil {
		m, err := common.NewPrometheusIntelligenceMetrics(collector.Registerer())
		if err != nil {
			return nil, err
		}
		metrics = m
	} else {
		metrics = common.NewNoopIntelligenceMetrics()
	}

	backend, err := buildBackend(cfg.Tagger, logger)
	if err != nil {
		return nil, err
	}

	registry := common.NewBackendRegistry()
	var tagger medner.CandidateSource
	if backend != nil {
		if err := registry.Register(TaggerBackendName, backend); err != nil {
			return nil, err
		}
		st, err := medner.NewStatisticalTagger(medner.TaggerConfig{
			Backend:  cfg.Tagger.Backend,
			Variants: cfg.Tagger.Variants,
			MinScore: cfg.Tagger.MinScore,
		}, backend, logger, metrics)
		if err != nil {
			registry.Close()
			return nil, err
		}
		tagger = st
	}

	resources, err := medner.LoadResources(medner.ResourcePaths{
		PatternsFile:   cfg.Resources.PatternsPath,
		DictionaryFile: cfg.Resources.DictionaryPath,
		FamiliesFile:   cfg.Resources.MorphologyPath,
		BoostFile:      cfg.Resources.BoostsPath,
	}, logger)
	if err != nil {
		registry.Close()
		return nil, err
	}

	pipelineCfg := medner.DefaultConfig()
	pipelineCfg.ConfidenceThreshold = cfg.Analysis.ConfidenceThreshold
	pipelineCfg.EnablePatterns = cfg.Analysis.EnablePatterns
	pipelineCfg.EnableDictionary = cfg.Analysis.EnableDictionary
	pipelineCfg.EnableMorphology = cfg.Analysis.EnableMorphology
	pipelineCfg.EnableContextualBoost = cfg.Analysis.EnableContextualBoost
	pipelineCfg.ConcurrentSources = cfg.Analysis.ConcurrentSources
	pipelineCfg.OverlapFraction = cfg.Analysis.OverlapFraction

	pipeline, err := medner.NewAnalysisPipeline(pipelineCfg, medner.Dependencies{
		Tagger:    tagger,
		Resources: resources,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	logger.Info("analysis engine assembled",
		logging.String("backend", cfg.Tagger.Backend),
		logging.Int("variants", len(cfg.Tagger.Variants)),
		logging.Bool("patterns", cfg.Analysis.EnablePatterns),
		logging.Bool("dictionary", cfg.Analysis.EnableDictionary),
		logging.Bool("morphology", cfg.Analysis.EnableMorphology))

	return &Engine{Pipeline: pipeline, Registry: registry, logger: logger}, nil
}

// buildBackend selects the model backend. Backend "none" returns nil and
// the pipeline runs on rule sources only.
func buildBackend(cfg config.TaggerConfig, logger logging.Logger) (common.ModelBackend, error) {
	switch cfg.Backend {
	case string(common.BackendTypeHTTP):
		return common.NewHTTPBackend(common.HTTPBackendConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RetryBase:  cfg.RetryBackoff,
		}, logger)
	case string(common.BackendTypeONNX):
		return common.NewONNXBackend(common.ONNXBackendConfig{
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			LibraryPath:   cfg.OrtLibraryPath,
			MaxSeqLen:     cfg.MaxSeqLen,
			OverlapWords:  cfg.WindowStride,
		}, logger)
	case string(common.BackendTypeMock), "":
		return common.NewMockBackend(), nil
	case string(common.BackendTypeNone):
		return nil, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown tagger backend %q", cfg.Backend))
	}
}

// Shutdown drains the pipeline and closes every registered backend.
func (e *Engine) Shutdown(ctx context.Context) error {
	var firstErr error
	if e.Pipeline != nil {
		if err := e.Pipeline.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if e.Registry != nil {
		if err := e.Registry.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.logger != nil {
		e.logger.Info("analysis engine shut down")
	}
	return firstErr
}
