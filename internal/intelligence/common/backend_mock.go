package common

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// MockBackend
// ---------------------------------------------------------------------------

// MockBackend is a deterministic in-process ModelBackend used in tests and in
// the demo configuration. Without an override it tags the input tokens
// against a small built-in Italian clinical lexicon and emits a word-level
// emission matrix in EmissionLabels column order. The same input always
// produces the same output.
type MockBackend struct {
	// PredictFunc overrides the default behaviour when non-nil.
	PredictFunc func(ctx context.Context, req *PredictRequest) (*PredictResponse, error)

	// HealthErr is returned by Healthy when non-nil.
	HealthErr error

	predictCalls atomic.Int64
}

// NewMockBackend creates a MockBackend with the built-in lexicon behaviour.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// mockLexicon maps normalized tokens to their entity category. It covers the
// vocabulary of common Italian clinical snippets so that demo and test texts
// produce plausible emissions without a real model.
var mockLexicon = map[string]string{
	// problems
	"mal":          "PROBLEM",
	"male":         "PROBLEM",
	"testa":        "PROBLEM",
	"stomaco":      "PROBLEM",
	"schiena":      "PROBLEM",
	"gola":         "PROBLEM",
	"nausea":       "PROBLEM",
	"febbre":       "PROBLEM",
	"dolore":       "PROBLEM",
	"dolori":       "PROBLEM",
	"tosse":        "PROBLEM",
	"vomito":       "PROBLEM",
	"cefalea":      "PROBLEM",
	"emicrania":    "PROBLEM",
	"infezione":    "PROBLEM",
	"influenza":    "PROBLEM",
	"diarrea":      "PROBLEM",
	"vertigini":    "PROBLEM",
	"allergia":     "PROBLEM",
	"asma":         "PROBLEM",
	"ipertensione": "PROBLEM",
	"diabete":      "PROBLEM",

	// treatments
	"paracetamolo":     "TREATMENT",
	"ibuprofene":       "TREATMENT",
	"aspirina":         "TREATMENT",
	"tachipirina":      "TREATMENT",
	"antibiotico":      "TREATMENT",
	"antibiotici":      "TREATMENT",
	"amoxicillina":     "TREATMENT",
	"cortisone":        "TREATMENT",
	"insulina":         "TREATMENT",
	"terapia":          "TREATMENT",
	"antinfiammatorio": "TREATMENT",
	"antinfiammatori":  "TREATMENT",
	"farmaco":          "TREATMENT",
	"farmaci":          "TREATMENT",

	// tests
	"esame":               "TEST",
	"esami":               "TEST",
	"sangue":              "TEST",
	"radiografia":         "TEST",
	"ecografia":           "TEST",
	"tac":                 "TEST",
	"analisi":             "TEST",
	"urine":               "TEST",
	"emocromo":            "TEST",
	"elettrocardiogramma": "TEST",
	"biopsia":             "TEST",
	"risonanza":           "TEST",
	"tampone":             "TEST",
}

// mockConnectives are function words that continue a multi-word entity when
// they sit between two lexicon tokens of the same category ("esame del
// sangue", "mal di testa").
var mockConnectives = map[string]bool{
	"di":    true,
	"del":   true,
	"della": true,
	"dello": true,
	"dei":   true,
	"delle": true,
	"al":    true,
	"alla":  true,
	"allo":  true,
}

// Predict implements ModelBackend.
func (b *MockBackend) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	b.predictCalls.Add(1)

	if b.PredictFunc != nil {
		return b.PredictFunc(ctx, req)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	tokens, err := DecodeTokenList(req.InputData)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode token list")
	}

	variant := req.Variant
	if variant == "" {
		variant = VariantSimple
	}

	tags := tagMockTokens(tokens)
	peak := mockVariantPeak(variant)

	matrix := make([][]float64, len(tokens))
	for i, tag := range tags {
		matrix[i] = mockEmissionRow(EmissionLabelIndex(tag), peak)
	}

	return &PredictResponse{
		ModelName:       req.ModelName,
		ModelVersion:    "mock-1.0.0",
		Variant:         variant,
		Outputs:         map[string]interface{}{OutputEmission: matrix},
		InferenceTimeMs: msSince(start),
	}, nil
}

// Healthy implements ModelBackend.
func (b *MockBackend) Healthy(_ context.Context) error {
	return b.HealthErr
}

// Close implements ModelBackend. The mock holds no resources.
func (b *MockBackend) Close() error {
	return nil
}

// PredictCalls returns how many times Predict has been invoked.
func (b *MockBackend) PredictCalls() int64 {
	return b.predictCalls.Load()
}

// ---------------------------------------------------------------------------
// Default tagging behaviour
// ---------------------------------------------------------------------------

// tagMockTokens walks the token sequence once. Lexicon tokens start or
// continue an entity, connectives bridge two same-category lexicon tokens,
// everything else is outside.
func tagMockTokens(tokens []string) []string {
	tags := make([]string, len(tokens))
	prevCategory := ""

	for i, tok := range tokens {
		norm := normalizeMockToken(tok)
		category, inLexicon := mockLexicon[norm]

		switch {
		case inLexicon && category == prevCategory:
			tags[i] = InsideLabel(category)
			prevCategory = category
		case inLexicon:
			tags[i] = BeginLabel(category)
			prevCategory = category
		case mockConnectives[norm] && prevCategory != "" && nextMockCategory(tokens, i+1) == prevCategory:
			tags[i] = InsideLabel(prevCategory)
		default:
			tags[i] = LabelO
			prevCategory = ""
		}
	}
	return tags
}

func nextMockCategory(tokens []string, idx int) string {
	if idx < 0 || idx >= len(tokens) {
		return ""
	}
	return mockLexicon[normalizeMockToken(tokens[idx])]
}

func normalizeMockToken(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,;:!?'\"()[]")
}

// mockVariantPeak maps an aggregation variant to the probability mass placed
// on the winning label, so different ensemble variants produce distinct but
// stable confidences.
func mockVariantPeak(variant string) float64 {
	switch variant {
	case VariantMax:
		return 0.94
	case VariantAverage:
		return 0.88
	case VariantFirst:
		return 0.86
	default:
		return 0.90
	}
}

// mockEmissionRow builds a probability row with peak mass at hotIdx and the
// remainder spread uniformly over the other labels.
func mockEmissionRow(hotIdx int, peak float64) []float64 {
	n := len(EmissionLabels)
	row := make([]float64, n)
	if hotIdx < 0 || hotIdx >= n {
		hotIdx = 0
	}
	rest := (1.0 - peak) / float64(n-1)
	for i := range row {
		if i == hotIdx {
			row[i] = peak
		} else {
			row[i] = rest
		}
	}
	return row
}

var _ ModelBackend = (*MockBackend)(nil)
