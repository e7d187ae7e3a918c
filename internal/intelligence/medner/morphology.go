package medner

import (
	"context"
	"strings"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Builtin root families
// ---------------------------------------------------------------------------

// builtinFamilies lists the embedded morphological families. Each family
// maps the derivational forms of one clinical root onto a label. Forms are
// matched whole-word and case-insensitively; this is the weakest source, so
// families stay conservative and avoid roots with common non-clinical
// derivations.
func builtinFamilies() []RootFamily {
	return []RootFamily{
		{
			Root:  "dolor",
			Label: KindProblem,
			Forms: []string{"dolore", "dolori", "dolorante", "doloranti", "doloroso", "dolorosa", "indolenzito", "indolenzita", "indolenzimento"},
		},
		{
			Root:  "febbr",
			Label: KindProblem,
			Forms: []string{"febbre", "febbricola", "febbrile", "febbricitante"},
		},
		{
			Root:  "infett",
			Label: KindProblem,
			Forms: []string{"infezione", "infezioni", "infettivo", "infettiva", "infetto", "infetta"},
		},
		{
			Root:  "infiamm",
			Label: KindProblem,
			Forms: []string{"infiammazione", "infiammazioni", "infiammato", "infiammata", "infiammatorio", "infiammatoria"},
		},
		{
			Root:  "terap",
			Label: KindTreatment,
			Forms: []string{"terapia", "terapie", "terapeutico", "terapeutica", "terapici"},
		},
		{
			Root:  "cur",
			Label: KindTreatment,
			Forms: []string{"cura", "cure", "curativo", "curativa"},
		},
		{
			Root:  "farmac",
			Label: KindTreatment,
			Forms: []string{"farmaco", "farmaci", "farmacologico", "farmacologica", "farmacologici"},
		},
		{
			Root:  "esam",
			Label: KindTest,
			Forms: []string{"esame", "esami"},
		},
		{
			Root:  "analis",
			Label: KindTest,
			Forms: []string{"analisi"},
		},
		{
			Root:  "diagnost",
			Label: KindTest,
			Forms: []string{"diagnostico", "diagnostica", "diagnostici", "diagnostiche"},
		},
	}
}

// ---------------------------------------------------------------------------
// MorphologicalMatcher
// ---------------------------------------------------------------------------

const defaultMorphologyConfidence = 0.70

// familyRef binds a matched form back to its family.
type familyRef struct {
	Root  string
	Label EntityKind
}

// MorphologicalMatcher detects entities by membership in derivational root
// families. It complements the dictionary with adjectival and participial
// forms ("dolorante", "infiammato") that plain term lookup misses, at the
// lowest confidence of the four sources.
type MorphologicalMatcher struct {
	forms      map[string]familyRef
	confidence float64
	logger     logging.Logger
}

// NewMorphologicalMatcher builds a matcher from families. Families with an
// unknown label and blank forms are skipped and logged.
func NewMorphologicalMatcher(families []RootFamily, confidence float64, logger logging.Logger) *MorphologicalMatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if confidence <= 0 || confidence > 1 {
		confidence = defaultMorphologyConfidence
	}
	forms := make(map[string]familyRef)
	for _, fam := range families {
		if !fam.Label.Valid() {
			logger.Warn("root family with unknown label skipped",
				logging.String("root", fam.Root),
				logging.String("label", string(fam.Label)))
			continue
		}
		ref := familyRef{Root: strings.ToLower(strings.TrimSpace(fam.Root)), Label: fam.Label}
		for _, form := range fam.Forms {
			form = strings.ToLower(strings.TrimSpace(form))
			if form == "" {
				continue
			}
			forms[form] = ref
		}
	}
	return &MorphologicalMatcher{forms: forms, confidence: confidence, logger: logger}
}

// Name implements CandidateSource.
func (m *MorphologicalMatcher) Name() string { return string(SourceMorphological) }

// Generate implements CandidateSource. Offsets refer to text as given.
func (m *MorphologicalMatcher) Generate(_ context.Context, text string) []Candidate {
	runes := []rune(text)
	var out []Candidate
	for _, tok := range tokenizeWords(runes) {
		ref, ok := m.forms[strings.ToLower(tok.Text)]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Text:       tok.Text,
			Label:      ref.Label,
			Start:      tok.Start,
			End:        tok.End,
			Confidence: m.confidence,
			Source:     SourceMorphological,
		})
	}
	return out
}

// FormCount reports the number of indexed surface forms.
func (m *MorphologicalMatcher) FormCount() int { return len(m.forms) }

var _ CandidateSource = (*MorphologicalMatcher)(nil)
