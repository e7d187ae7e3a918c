package medner

import (
	"context"
	"fmt"
	"math"
	"time"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/intelligence/common"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// TaggerConfig
// ---------------------------------------------------------------------------

const defaultTaggerMinScore = 0.2

// TaggerConfig configures the statistical tagger adapter.
type TaggerConfig struct {
	// ModelName is the model identifier sent to the backend.
	ModelName string `json:"model_name" yaml:"model_name"`
	// Backend labels inference metrics with the serving path ("onnx",
	// "http", "mock").
	Backend string `json:"backend" yaml:"backend"`
	// Variants lists the ensemble aggregation strategies to run. Each
	// variant produces its own independent candidates.
	Variants []string `json:"variants" yaml:"variants"`
	// MinScore discards model spans below this confidence. It is a fixed
	// floor of the source, separate from the pipeline threshold.
	MinScore float64 `json:"min_score" yaml:"min_score"`
}

// DefaultTaggerConfig returns the standard two-variant ensemble.
func DefaultTaggerConfig() TaggerConfig {
	return TaggerConfig{
		ModelName: "medner-italian",
		Backend:   string(common.BackendTypeMock),
		Variants:  []string{common.VariantSimple, common.VariantMax},
		MinScore:  defaultTaggerMinScore,
	}
}

// ---------------------------------------------------------------------------
// StatisticalTagger
// ---------------------------------------------------------------------------

// StatisticalTagger adapts a token-tagging model backend into a
// CandidateSource. For each configured ensemble variant it requests a
// word-level emission matrix, decodes BIO runs into spans and aggregates
// per-word probabilities into one span confidence. Variants differ both in
// how the backend pools sub-words and in how span confidence is
// aggregated here: simple uses the geometric mean, max the maximum,
// average the arithmetic mean, first the first word's probability.
//
// A failing variant is logged and skipped so the remaining ensemble and
// the rule-based sources still produce a result.
type StatisticalTagger struct {
	cfg     TaggerConfig
	backend common.ModelBackend
	logger  logging.Logger
	metrics common.IntelligenceMetrics
}

// NewStatisticalTagger builds the adapter. The backend is required; an
// unknown variant name is a construction error.
func NewStatisticalTagger(cfg TaggerConfig, backend common.ModelBackend, logger logging.Logger, metrics common.IntelligenceMetrics) (*StatisticalTagger, error) {
	if backend == nil {
		return nil, apperrors.New(apperrors.ErrCodeModelNotAvailable, "statistical tagger requires a backend")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = common.NewNoopIntelligenceMetrics()
	}
	def := DefaultTaggerConfig()
	if cfg.ModelName == "" {
		cfg.ModelName = def.ModelName
	}
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = def.Variants
	}
	for _, v := range cfg.Variants {
		if !common.IsKnownVariant(v) {
			return nil, apperrors.New(apperrors.ErrCodeStrategyUnknown,
				fmt.Sprintf("unknown ensemble variant %q", v))
		}
	}
	if cfg.MinScore <= 0 || cfg.MinScore >= 1 {
		cfg.MinScore = def.MinScore
	}
	return &StatisticalTagger{cfg: cfg, backend: backend, logger: logger, metrics: metrics}, nil
}

// Name implements CandidateSource.
func (t *StatisticalTagger) Name() string { return "model" }

// Generate implements CandidateSource. Offsets refer to text as given.
func (t *StatisticalTagger) Generate(ctx context.Context, text string) []Candidate {
	runes := []rune(text)
	words := tokenizeWords(runes)
	if len(words) == 0 {
		return nil
	}
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = w.Text
	}
	payload := common.EncodeTokenList(tokens)

	var out []Candidate
	for _, variant := range t.cfg.Variants {
		matrix, err := t.predictVariant(ctx, payload, variant, len(tokens))
		if err != nil {
			t.logger.Warn("tagger variant failed, skipping",
				logging.String("model", t.cfg.ModelName),
				logging.String("variant", variant),
				logging.Err(err))
			continue
		}
		out = append(out, t.decodeVariant(runes, words, matrix, variant)...)
	}
	return out
}

// predictVariant runs one backend inference and validates the emission
// matrix shape against the word count.
func (t *StatisticalTagger) predictVariant(ctx context.Context, payload []byte, variant string, wordCount int) ([][]float64, error) {
	req := &common.PredictRequest{
		ModelName:   t.cfg.ModelName,
		Variant:     variant,
		InputData:   payload,
		InputFormat: common.FormatJSON,
		OutputNames: []string{common.OutputEmission},
	}

	started := time.Now()
	resp, err := t.backend.Predict(ctx, req)
	params := &common.InferenceMetricParams{
		Backend:    t.cfg.Backend,
		ModelName:  t.cfg.ModelName,
		Variant:    variant,
		DurationMs: float64(time.Since(started).Microseconds()) / 1000.0,
		Success:    err == nil,
		TokenCount: wordCount,
	}
	if resp != nil {
		params.ModelVersion = resp.ModelVersion
	}
	t.metrics.RecordInference(ctx, params)
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Outputs[common.OutputEmission]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed, "backend response has no emission output")
	}
	matrix, err := common.DecodeFloat64Matrix(raw)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendParseError, "emission matrix decode failed")
	}
	if len(matrix) != wordCount {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed,
			fmt.Sprintf("emission has %d rows for %d words", len(matrix), wordCount))
	}
	return matrix, nil
}

// decodeVariant turns an emission matrix into span candidates for one
// variant.
func (t *StatisticalTagger) decodeVariant(runes []rune, words []wordToken, matrix [][]float64, variant string) []Candidate {
	labels, probs := argmaxRows(matrix)
	repairBIO(labels)

	source := ModelSource(variant)
	var out []Candidate
	for i := 0; i < len(labels); {
		category := common.LabelCategory(labels[i])
		if category == "" || labels[i] != common.BeginLabel(category) {
			i++
			continue
		}
		j := i + 1
		for j < len(labels) && labels[j] == common.InsideLabel(category) {
			j++
		}
		label := EntityKind(category)
		conf := aggregateSpanConfidence(variant, probs[i:j])
		if label.Valid() && conf >= t.cfg.MinScore {
			start := words[i].Start
			end := words[j-1].End
			out = append(out, Candidate{
				Text:       string(runes[start:end]),
				Label:      label,
				Start:      start,
				End:        end,
				Confidence: clamp01(conf),
				Source:     source,
			})
		}
		i = j
	}
	return out
}

// argmaxRows picks the winning label and its probability per word. Rows
// with an unexpected width count as outside.
func argmaxRows(matrix [][]float64) ([]string, []float64) {
	labels := make([]string, len(matrix))
	probs := make([]float64, len(matrix))
	for i, row := range matrix {
		labels[i] = common.LabelO
		if len(row) != len(common.EmissionLabels) {
			continue
		}
		best := 0
		for k := 1; k < len(row); k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		labels[i] = common.EmissionLabels[best]
		probs[i] = row[best]
	}
	return labels, probs
}

// repairBIO rewrites orphan inside-tags in place: an I-X with no adjacent
// B-X or I-X before it becomes B-X, so decoding never loses a span to a
// model hiccup.
func repairBIO(labels []string) {
	for i, label := range labels {
		category := common.LabelCategory(label)
		if category == "" || label != common.InsideLabel(category) {
			continue
		}
		if i == 0 || common.LabelCategory(labels[i-1]) != category {
			labels[i] = common.BeginLabel(category)
		}
	}
}

// aggregateSpanConfidence folds per-word probabilities into one span
// confidence according to the ensemble variant.
func aggregateSpanConfidence(variant string, probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	switch variant {
	case common.VariantMax:
		best := probs[0]
		for _, p := range probs[1:] {
			if p > best {
				best = p
			}
		}
		return best
	case common.VariantAverage:
		var sum float64
		for _, p := range probs {
			sum += p
		}
		return sum / float64(len(probs))
	case common.VariantFirst:
		return probs[0]
	default:
		// Geometric mean; any zero probability zeroes the span.
		var logSum float64
		for _, p := range probs {
			if p <= 0 {
				return 0
			}
			logSum += math.Log(p)
		}
		return math.Exp(logSum / float64(len(probs)))
	}
}

var _ CandidateSource = (*StatisticalTagger)(nil)
