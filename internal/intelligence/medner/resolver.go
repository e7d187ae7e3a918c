package medner

import (
	"sort"
)

// ---------------------------------------------------------------------------
// ResolverConfig
// ---------------------------------------------------------------------------

// ResolverConfig tunes conflict scoring. Score for a candidate is
//
//	clamp(confidence + sourceBonus + min(lengthCap, runeLen/lengthDivisor), ceiling)
//
// Contextual boost is already folded into confidence by the booster stage
// and must not be added again here.
type ResolverConfig struct {
	SourceBonus   map[SourceKind]float64 `json:"source_bonus" yaml:"source_bonus"`
	LengthCap     float64                `json:"length_cap" yaml:"length_cap"`
	LengthDivisor float64                `json:"length_divisor" yaml:"length_divisor"`
	Ceiling       float64                `json:"ceiling" yaml:"ceiling"`
}

// DefaultResolverConfig returns the standard scoring table. Model sources
// outrank patterns, patterns outrank the dictionary, the dictionary
// outranks morphology; averaging variants sit slightly below the direct
// ones.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SourceBonus: map[SourceKind]float64{
			SourceModelSimple:   0.10,
			SourceModelMax:      0.10,
			SourceModelAverage:  0.08,
			SourceModelFirst:    0.08,
			SourcePattern:       0.08,
			SourceDictionary:    0.05,
			SourceMorphological: 0.03,
		},
		LengthCap:     0.02,
		LengthDivisor: 100,
		Ceiling:       0.95,
	}
}

// ---------------------------------------------------------------------------
// OverlapResolver
// ---------------------------------------------------------------------------

// OverlapResolver reduces a candidate pool to a non-overlapping entity
// list. Candidates are swept left to right; whenever the next candidate
// intersects the one under construction, the two fuse: the higher-scoring
// side keeps label and source, the span becomes the union, and provenance
// records both. The sweep is deterministic and idempotent: running the
// output through Merge again changes nothing.
type OverlapResolver struct {
	cfg ResolverConfig
}

// NewOverlapResolver builds a resolver, falling back to defaults for
// missing or out-of-range tuning values.
func NewOverlapResolver(cfg ResolverConfig) *OverlapResolver {
	def := DefaultResolverConfig()
	if cfg.SourceBonus == nil {
		cfg.SourceBonus = def.SourceBonus
	}
	if cfg.LengthCap <= 0 {
		cfg.LengthCap = def.LengthCap
	}
	if cfg.LengthDivisor <= 0 {
		cfg.LengthDivisor = def.LengthDivisor
	}
	if cfg.Ceiling <= 0 || cfg.Ceiling > 1 {
		cfg.Ceiling = def.Ceiling
	}
	return &OverlapResolver{cfg: cfg}
}

// Merge resolves candidates into non-overlapping entities ordered by start.
// text must be the analyzed text the candidate offsets refer to; fused
// spans are re-sliced from it so span/text consistency survives merging.
// Candidates whose span does not fit the text are dropped.
func (r *OverlapResolver) Merge(text string, candidates []Candidate) []Entity {
	entities := make([]Entity, 0, len(candidates))
	runes := []rune(text)

	sorted := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Start < 0 || c.End > len(runes) || c.Start >= c.End {
			continue
		}
		c.Confidence = clamp01(c.Confidence)
		sorted = append(sorted, c)
	}
	if len(sorted) == 0 {
		return entities
	}
	// Start ascending, longer span first on equal start.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	current := singleEntity(sorted[0])
	for _, next := range sorted[1:] {
		if next.Start >= current.End {
			entities = append(entities, current)
			current = singleEntity(next)
			continue
		}
		current = r.fuse(runes, current, next)
	}
	entities = append(entities, current)
	return entities
}

// Score exposes the conflict score of a single candidate, mostly for
// diagnostics and tests.
func (r *OverlapResolver) Score(c Candidate) float64 {
	bonus := r.cfg.SourceBonus[c.Source]
	lengthTerm := float64(c.RuneLen()) / r.cfg.LengthDivisor
	if lengthTerm > r.cfg.LengthCap {
		lengthTerm = r.cfg.LengthCap
	}
	return clampCeiling(c.Confidence+bonus+lengthTerm, r.cfg.Ceiling)
}

func singleEntity(c Candidate) Entity {
	return Entity{Candidate: c, MergeProvenance: []SourceKind{c.Source}}
}

// fuse merges an intersecting candidate into the entity under
// construction. The sweep order guarantees current.Start <= next.Start, so
// the union span keeps current's start and extends the end as needed.
func (r *OverlapResolver) fuse(runes []rune, current Entity, next Candidate) Entity {
	s1 := r.Score(current.Candidate)
	s2 := r.Score(next)

	nextWins := false
	switch {
	case s2 > s1:
		nextWins = true
	case s1 > s2:
		nextWins = false
	default:
		p1 := current.Source.Family().Priority()
		p2 := next.Source.Family().Priority()
		if p1 != p2 {
			nextWins = p2 > p1
		} else {
			nextWins = next.RuneLen() > current.RuneLen()
		}
	}

	end := current.End
	if next.End > end {
		end = next.End
	}
	conf := s1
	if s2 > conf {
		conf = s2
	}

	merged := Entity{
		Candidate: Candidate{
			Text:            string(runes[current.Start:end]),
			Label:           current.Label,
			Start:           current.Start,
			End:             end,
			Confidence:      conf,
			Source:          current.Source,
			ContextualBoost: current.ContextualBoost,
		},
		MergeProvenance: append(current.MergeProvenance, next.Source),
	}
	if nextWins {
		merged.Label = next.Label
		merged.Source = next.Source
		merged.ContextualBoost = next.ContextualBoost
	}
	return merged
}
