package medner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/intelligence/common"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config tunes one analysis pipeline instance. Use DefaultConfig as the
// base; a zero Config disables every rule source.
type Config struct {
	// ConfidenceThreshold is the default minimum confidence for final
	// entities. It can be overridden per call.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// Source toggles. The model source is active whenever a tagger is
	// injected.
	EnablePatterns        bool `json:"enable_patterns" yaml:"enable_patterns"`
	EnableDictionary      bool `json:"enable_dictionary" yaml:"enable_dictionary"`
	EnableMorphology      bool `json:"enable_morphology" yaml:"enable_morphology"`
	EnableContextualBoost bool `json:"enable_contextual_boost" yaml:"enable_contextual_boost"`

	// ConcurrentSources runs the sources in parallel. Pooling order is
	// fixed regardless, so results are identical either way.
	ConcurrentSources bool `json:"concurrent_sources" yaml:"concurrent_sources"`

	// OverlapFraction is the significance cutoff for the pooling
	// pre-filter: a rule candidate covering more than this fraction of an
	// already-pooled span (or vice versa) is redundant and dropped.
	OverlapFraction float64 `json:"overlap_fraction" yaml:"overlap_fraction"`

	// BoostWindow and BoostCeiling tune the contextual booster.
	BoostWindow  int     `json:"boost_window" yaml:"boost_window"`
	BoostCeiling float64 `json:"boost_ceiling" yaml:"boost_ceiling"`

	// Per-source base confidences for the lexical sources.
	DictionaryConfidence float64 `json:"dictionary_confidence" yaml:"dictionary_confidence"`
	MorphologyConfidence float64 `json:"morphology_confidence" yaml:"morphology_confidence"`

	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Filter   FilterConfig   `json:"filter" yaml:"filter"`

	// MaxBatchConcurrency bounds parallel texts in AnalyzeBatch.
	MaxBatchConcurrency int `json:"max_batch_concurrency" yaml:"max_batch_concurrency"`
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:   0.2,
		EnablePatterns:        true,
		EnableDictionary:      true,
		EnableMorphology:      true,
		EnableContextualBoost: true,
		ConcurrentSources:     true,
		OverlapFraction:       0.5,
		BoostWindow:           defaultBoostWindow,
		BoostCeiling:          defaultBoostCeiling,
		DictionaryConfidence:  defaultDictionaryConfidence,
		MorphologyConfidence:  defaultMorphologyConfidence,
		Resolver:              DefaultResolverConfig(),
		Filter:                DefaultFilterConfig(),
		MaxBatchConcurrency:   4,
	}
}

// Options are per-call overrides for Analyze.
type Options struct {
	// ConfidenceThreshold replaces the configured threshold when set.
	ConfidenceThreshold *float64
	// EnableContextualBoost replaces the configured boost toggle when set.
	EnableContextualBoost *bool
}

// ---------------------------------------------------------------------------
// AnalysisPipeline
// ---------------------------------------------------------------------------

// Dependencies carries the collaborators a pipeline needs.
type Dependencies struct {
	// Tagger is the statistical model source; nil runs rules only.
	Tagger CandidateSource
	// Resources overrides the embedded lexical resources; nil uses them.
	Resources *Resources
	Logger    logging.Logger
	Metrics   common.IntelligenceMetrics
}

// AnalysisPipeline orchestrates one full analysis: candidate generation
// from every enabled source, contextual boosting, span sanitation, overlap
// resolution, quality filtering and aggregation. Instances are safe for
// concurrent use.
type AnalysisPipeline struct {
	cfg      Config
	sources  []CandidateSource
	booster  *ContextualBooster
	resolver *OverlapResolver
	filter   *QualityFilter
	batch    common.BatchProcessor[string, *AnalysisResult]
	logger   logging.Logger
	metrics  common.IntelligenceMetrics
}

// NewAnalysisPipeline validates cfg and assembles the pipeline. Sources are
// kept in fixed pooling order (model, pattern, dictionary, morphological)
// independent of execution order.
func NewAnalysisPipeline(cfg Config, deps Dependencies) (*AnalysisPipeline, error) {
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, apperrors.New(apperrors.ErrCodeThresholdInvalid,
			fmt.Sprintf("confidence threshold %.3f outside [0,1]", cfg.ConfidenceThreshold))
	}
	if cfg.OverlapFraction <= 0 || cfg.OverlapFraction >= 1 {
		cfg.OverlapFraction = DefaultConfig().OverlapFraction
	}
	if cfg.MaxBatchConcurrency <= 0 {
		cfg.MaxBatchConcurrency = DefaultConfig().MaxBatchConcurrency
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = common.NewNoopIntelligenceMetrics()
	}
	resources := deps.Resources
	if resources == nil {
		resources = DefaultResources()
	}

	var sources []CandidateSource
	if deps.Tagger != nil {
		sources = append(sources, deps.Tagger)
	}
	if cfg.EnablePatterns {
		sources = append(sources, NewPatternMatcher(resources.Patterns, logger))
	}
	if cfg.EnableDictionary {
		sources = append(sources, NewDictionaryMatcher(resources.Dictionary, cfg.DictionaryConfidence, logger))
	}
	if cfg.EnableMorphology {
		sources = append(sources, NewMorphologicalMatcher(resources.Families, cfg.MorphologyConfidence, logger))
	}

	p := &AnalysisPipeline{
		cfg:      cfg,
		sources:  sources,
		booster:  NewContextualBooster(resources.BoostCategories, cfg.BoostWindow, cfg.BoostCeiling, logger),
		resolver: NewOverlapResolver(cfg.Resolver),
		filter:   NewQualityFilter(cfg.Filter),
		logger:   logger,
		metrics:  metrics,
	}
	p.batch = common.NewBatchProcessor[string, *AnalysisResult](
		common.WithBatchName("analyze-batch"),
		common.WithMaxConcurrency(cfg.MaxBatchConcurrency),
		common.WithBatchMetrics(metrics),
		common.WithBatchLogger(logger),
	)

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	logger.Info("analysis pipeline ready",
		logging.String("sources", strings.Join(names, ",")),
		logging.Float64("confidence_threshold", cfg.ConfidenceThreshold),
		logging.Bool("concurrent_sources", cfg.ConcurrentSources))
	return p, nil
}

// Analyze runs the full pipeline with the configured settings.
func (p *AnalysisPipeline) Analyze(ctx context.Context, text string) (*AnalysisResult, error) {
	return p.AnalyzeWithOptions(ctx, text, nil)
}

// AnalyzeWithOptions runs the full pipeline with per-call overrides.
// Blank or whitespace-only text yields an empty result, not an error.
func (p *AnalysisPipeline) AnalyzeWithOptions(ctx context.Context, text string, opts *Options) (*AnalysisResult, error) {
	started := time.Now()

	threshold := p.cfg.ConfidenceThreshold
	boostOn := p.cfg.EnableContextualBoost
	if opts != nil {
		if opts.ConfidenceThreshold != nil {
			t := *opts.ConfidenceThreshold
			if t < 0 || t > 1 {
				return nil, apperrors.New(apperrors.ErrCodeThresholdInvalid,
					fmt.Sprintf("confidence threshold %.3f outside [0,1]", t))
			}
			threshold = t
		}
		if opts.EnableContextualBoost != nil {
			boostOn = *opts.EnableContextualBoost
		}
	}
	if !utf8.ValidString(text) {
		return nil, apperrors.New(apperrors.ErrCodeTextNotUTF8, "text is not valid UTF-8")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := normalizeText(text)
	if strings.TrimSpace(normalized) == "" {
		result := buildResult(normalized, nil, threshold, boostOn, time.Since(started))
		p.recordAnalysis(ctx, result, 0, true)
		return result, nil
	}
	runes := []rune(normalized)

	slots := p.collect(ctx, normalized)
	candidateCount := 0
	counts := make(map[SourceKind]int)
	for _, cands := range slots {
		candidateCount += len(cands)
		for _, c := range cands {
			counts[c.Source]++
		}
	}
	for src, n := range counts {
		p.metrics.RecordSourceCandidates(ctx, string(src), n)
	}

	pooled := p.pool(slots)
	if boostOn {
		pooled = p.booster.Boost(normalized, pooled)
	}
	pooled = p.sanitize(pooled, len(runes))

	entities := p.resolver.Merge(normalized, pooled)
	if merges := len(pooled) - len(entities); merges > 0 {
		p.metrics.RecordMergeResolutions(ctx, merges)
	}

	kept, drops := p.filter.Filter(normalized, entities, threshold)
	for reason, n := range drops {
		p.metrics.RecordFilterDrops(ctx, reason, n)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	result := buildResult(normalized, kept, threshold, boostOn, time.Since(started))
	p.recordAnalysis(ctx, result, candidateCount, true)
	p.logger.Debug("analysis complete",
		logging.Int("text_runes", len(runes)),
		logging.Int("candidates", candidateCount),
		logging.Int("entities", result.TotalEntities),
		logging.Int64("duration_ms", result.ProcessingTimeMs))
	return result, nil
}

// AnalyzeBatch analyzes texts with bounded concurrency. The returned slice
// is index-aligned with texts; a text whose analysis failed has a nil
// entry and the failure is logged.
func (p *AnalysisPipeline) AnalyzeBatch(ctx context.Context, texts []string) ([]*AnalysisResult, error) {
	if len(texts) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeBatchEmpty, "batch contains no texts")
	}
	batchResult, err := p.batch.Process(ctx, texts, func(ctx context.Context, text string) (*AnalysisResult, error) {
		return p.Analyze(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*AnalysisResult, len(texts))
	for _, item := range batchResult.Results {
		if item.Error != nil {
			p.logger.Warn("batch item failed",
				logging.Int("index", item.Index),
				logging.Err(item.Error))
			continue
		}
		out[item.Index] = item.Result
	}
	return out, nil
}

// Shutdown drains in-flight batch work.
func (p *AnalysisPipeline) Shutdown(ctx context.Context) error {
	return p.batch.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Stages
// ---------------------------------------------------------------------------

// collect runs every source, sequentially or in parallel, and returns the
// per-source candidate lists in pooling order.
func (p *AnalysisPipeline) collect(ctx context.Context, text string) [][]Candidate {
	slots := make([][]Candidate, len(p.sources))
	if !p.cfg.ConcurrentSources || len(p.sources) < 2 {
		for i, src := range p.sources {
			slots[i] = p.safeGenerate(ctx, src, text)
		}
		return slots
	}
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src CandidateSource) {
			defer wg.Done()
			slots[i] = p.safeGenerate(ctx, src, text)
		}(i, src)
	}
	wg.Wait()
	return slots
}

// safeGenerate isolates a misbehaving source: a panic is logged and yields
// no candidates instead of aborting the analysis.
func (p *AnalysisPipeline) safeGenerate(ctx context.Context, src CandidateSource, text string) (out []Candidate) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("candidate source panicked",
				logging.String("source", src.Name()),
				logging.Any("panic", r))
			out = nil
		}
	}()
	return src.Generate(ctx, text)
}

// pool concatenates the per-source lists in pooling order, dropping rule
// candidates that significantly overlap an already-pooled span. Model
// candidates are always pooled; the resolver arbitrates among them.
func (p *AnalysisPipeline) pool(slots [][]Candidate) []Candidate {
	var pooled []Candidate
	for _, cands := range slots {
		for _, c := range cands {
			if c.Source.Family() != FamilyModel && p.overlapsPool(pooled, c) {
				continue
			}
			pooled = append(pooled, c)
		}
	}
	return pooled
}

func (p *AnalysisPipeline) overlapsPool(pool []Candidate, c Candidate) bool {
	for _, existing := range pool {
		if significantOverlap(existing.Start, existing.End, c.Start, c.End, p.cfg.OverlapFraction) {
			return true
		}
	}
	return false
}

// sanitize drops candidates whose span or label cannot be trusted before
// they reach the resolver.
func (p *AnalysisPipeline) sanitize(candidates []Candidate, textLen int) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Start < 0 || c.End > textLen || c.Start >= c.End {
			p.logger.Warn("discarding candidate with inconsistent span",
				logging.String("source", string(c.Source)),
				logging.Int("start", c.Start),
				logging.Int("end", c.End),
				logging.Int("text_runes", textLen))
			continue
		}
		if !c.Label.Valid() {
			p.logger.Warn("discarding candidate with unknown label",
				logging.String("source", string(c.Source)),
				logging.String("label", string(c.Label)))
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (p *AnalysisPipeline) recordAnalysis(ctx context.Context, result *AnalysisResult, candidateCount int, success bool) {
	p.metrics.RecordAnalysis(ctx, &common.AnalysisMetricParams{
		DurationMs:     float64(result.ProcessingTimeMs),
		TextChars:      utf8.RuneCountInString(result.Text),
		CandidateCount: candidateCount,
		EntityCount:    result.TotalEntities,
		Success:        success,
		Concurrent:     p.cfg.ConcurrentSources,
	})
}

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// buildResult assembles the serializable result with aggregate statistics.
// Entities must already be sorted by start.
func buildResult(text string, entities []Entity, threshold float64, enhanced bool, elapsed time.Duration) *AnalysisResult {
	if entities == nil {
		entities = []Entity{}
	}
	counts := make(map[EntityKind]int)
	dist := make(map[SourceKind]int)
	result := &AnalysisResult{
		Text:                text,
		Entities:            entities,
		EntityCounts:        counts,
		SourceDistribution:  dist,
		TotalEntities:       len(entities),
		ConfidenceThreshold: threshold,
		EnhancementApplied:  enhanced,
		ProcessingTimeMs:    elapsed.Milliseconds(),
	}
	if len(entities) == 0 {
		return result
	}

	var sum, boostSum float64
	minConf, maxConf := entities[0].Confidence, entities[0].Confidence
	for _, e := range entities {
		counts[e.Label]++
		dist[e.Source]++
		sum += e.Confidence
		boostSum += e.ContextualBoost
		if e.Confidence < minConf {
			minConf = e.Confidence
		}
		if e.Confidence > maxConf {
			maxConf = e.Confidence
		}
	}
	n := float64(len(entities))
	mean := sum / n
	var sqDiff float64
	for _, e := range entities {
		d := e.Confidence - mean
		sqDiff += d * d
	}

	result.AverageConfidence = mean
	result.ConfidenceStd = math.Sqrt(sqDiff / n)
	result.MinConfidence = minConf
	result.MaxConfidence = maxConf
	result.AverageBoost = boostSum / n
	return result
}
