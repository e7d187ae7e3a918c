package medner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Builtin boost categories
// ---------------------------------------------------------------------------

// builtinBoostCategories lists the embedded context categories. Stronger
// boosts go to cues that rarely appear outside clinical narrative; weaker
// ones to generic symptom verbs.
func builtinBoostCategories() []BoostCategory {
	return []BoostCategory{
		{
			Name:  "medical_setting",
			Boost: 0.15,
			Keywords: []string{
				"ospedale", "clinica", "ambulatorio", "pronto soccorso",
				"reparto", "medico", "dottore", "dottoressa", "paziente",
				"infermiere", "ricovero",
			},
		},
		{
			Name:  "treatment_context",
			Boost: 0.12,
			Keywords: []string{
				"prescritto", "prescritta", "somministrato", "somministrata",
				"assume", "assumere", "assunzione", "dosaggio", "posologia",
				"compresse", "mg",
			},
		},
		{
			Name:  "diagnostic_context",
			Boost: 0.10,
			Keywords: []string{
				"referto", "risultato", "risultati", "esito", "positivo",
				"negativo", "valori", "riscontrato", "evidenziato", "diagnosi",
			},
		},
		{
			Name:  "symptom_context",
			Boost: 0.08,
			Keywords: []string{
				"presenta", "lamenta", "accusa", "riferisce", "avverte",
				"soffre", "persistente", "acuto", "improvviso", "insorgenza",
			},
		},
	}
}

// ---------------------------------------------------------------------------
// ContextualBooster
// ---------------------------------------------------------------------------

const (
	defaultBoostWindow  = 100
	defaultBoostCeiling = 0.95
)

type compiledBoostCategory struct {
	name     string
	boost    float64
	keywords []string
}

// ContextualBooster raises candidate confidence when clinical context cues
// appear near the span. Each category contributes at most once per
// candidate; the summed boost is capped by the ceiling so no candidate
// reaches certainty on context alone.
type ContextualBooster struct {
	categories []compiledBoostCategory
	window     int
	ceiling    float64
	logger     logging.Logger
}

// NewContextualBooster builds a booster from categories. Categories with an
// out-of-range boost or no keywords are skipped and logged.
func NewContextualBooster(categories []BoostCategory, window int, ceiling float64, logger logging.Logger) *ContextualBooster {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if window <= 0 {
		window = defaultBoostWindow
	}
	if ceiling <= 0 || ceiling > 1 {
		ceiling = defaultBoostCeiling
	}
	compiled := make([]compiledBoostCategory, 0, len(categories))
	for _, cat := range categories {
		if cat.Boost <= 0 || cat.Boost > 1 {
			logger.Warn("boost category with out-of-range boost skipped",
				logging.String("category", cat.Name),
				logging.Float64("boost", cat.Boost))
			continue
		}
		var keywords []string
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			logger.Warn("boost category without keywords skipped",
				logging.String("category", cat.Name))
			continue
		}
		compiled = append(compiled, compiledBoostCategory{name: cat.Name, boost: cat.Boost, keywords: keywords})
	}
	return &ContextualBooster{categories: compiled, window: window, ceiling: ceiling, logger: logger}
}

// Boost returns a copy of candidates with context-adjusted confidence. The
// window extends window runes on both sides of each span, clamped to the
// text. ContextualBoost records the delta actually applied after the
// ceiling.
func (b *ContextualBooster) Boost(text string, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	runes := []rune(text)
	out := make([]Candidate, len(candidates))
	for i, cand := range candidates {
		out[i] = cand
		lo := cand.Start - b.window
		if lo < 0 {
			lo = 0
		}
		hi := cand.End + b.window
		if hi > len(runes) {
			hi = len(runes)
		}
		if lo >= hi {
			continue
		}
		window := strings.ToLower(string(runes[lo:hi]))
		var total float64
		for _, cat := range b.categories {
			for _, kw := range cat.keywords {
				if containsKeyword(window, kw) {
					total += cat.boost
					break
				}
			}
		}
		if total == 0 {
			continue
		}
		boosted := cand.Confidence + total
		if boosted > b.ceiling {
			boosted = b.ceiling
		}
		if boosted > out[i].Confidence {
			out[i].ContextualBoost = boosted - out[i].Confidence
			out[i].Confidence = boosted
		}
	}
	return out
}

// containsKeyword reports whether kw occurs in window delimited by
// non-letters on both sides, so "mg" matches "500 mg" but not "magma".
// Both arguments must already be lowercase.
func containsKeyword(window, kw string) bool {
	for idx := 0; idx <= len(window)-len(kw); {
		j := strings.Index(window[idx:], kw)
		if j < 0 {
			return false
		}
		pos := idx + j
		beforeOK := pos == 0
		if !beforeOK {
			r, _ := utf8.DecodeLastRuneInString(window[:pos])
			beforeOK = !unicode.IsLetter(r)
		}
		afterOK := pos+len(kw) >= len(window)
		if !afterOK {
			r, _ := utf8.DecodeRuneInString(window[pos+len(kw):])
			afterOK = !unicode.IsLetter(r)
		}
		if beforeOK && afterOK {
			return true
		}
		idx = pos + 1
	}
	return false
}

// CategoryCount reports the number of active categories.
func (b *ContextualBooster) CategoryCount() int { return len(b.categories) }
