package medner

// ---------------------------------------------------------------------------
// QualityFilter
// ---------------------------------------------------------------------------

// Drop reasons reported by the filter, reused as metric label values.
const (
	DropInvalidSpan    = "invalid_span"
	DropEmptySpan      = "empty_span"
	DropNoLetters      = "no_letters"
	DropTooShort       = "too_short"
	DropBelowThreshold = "below_threshold"
)

// FilterConfig tunes the quality filter.
type FilterConfig struct {
	// MinLength is the minimum trimmed span length in runes.
	MinLength int `json:"min_length" yaml:"min_length"`
	// HighConfidence exempts very confident entities from the length
	// check, so a short but certain detection like "TAC" survives.
	HighConfidence float64 `json:"high_confidence" yaml:"high_confidence"`
}

// DefaultFilterConfig returns the standard filter tuning.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MinLength: 2, HighConfidence: 0.8}
}

// QualityFilter prunes degenerate entities after merging: whitespace gets
// trimmed off spans, and entities that are too short, carry no letters or
// sit below the confidence threshold are dropped.
type QualityFilter struct {
	cfg FilterConfig
}

// NewQualityFilter builds a filter, falling back to defaults for missing
// or out-of-range tuning values.
func NewQualityFilter(cfg FilterConfig) *QualityFilter {
	def := DefaultFilterConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.HighConfidence <= 0 || cfg.HighConfidence > 1 {
		cfg.HighConfidence = def.HighConfidence
	}
	return &QualityFilter{cfg: cfg}
}

// Filter returns the surviving entities with trimmed spans, plus a count of
// drops per reason. Confidences are re-clamped to [0,1] before the
// threshold comparison; survivors keep their input order.
func (f *QualityFilter) Filter(text string, entities []Entity, threshold float64) ([]Entity, map[string]int) {
	runes := []rune(text)
	threshold = clamp01(threshold)
	kept := make([]Entity, 0, len(entities))
	drops := make(map[string]int)

	for _, e := range entities {
		if e.Start < 0 || e.End > len(runes) || e.Start >= e.End {
			drops[DropInvalidSpan]++
			continue
		}
		e.Confidence = clamp01(e.Confidence)
		start, end := trimSpan(runes, e.Start, e.End)
		if start >= end {
			drops[DropEmptySpan]++
			continue
		}
		if !containsLetter(runes, start, end) {
			drops[DropNoLetters]++
			continue
		}
		if end-start < f.cfg.MinLength && e.Confidence <= f.cfg.HighConfidence {
			drops[DropTooShort]++
			continue
		}
		if e.Confidence < threshold {
			drops[DropBelowThreshold]++
			continue
		}
		e.Start = start
		e.End = end
		e.Text = string(runes[start:end])
		kept = append(kept, e)
	}
	return kept, drops
}
