// Package medner implements the multi-source candidate-fusion and
// conflict-resolution engine for Italian medical named-entity recognition.
// Four independent detectors (statistical tagger, regex patterns, term
// dictionary, morphological families) emit provisional candidates; a
// contextual booster adjusts confidence from surrounding text; an overlap
// resolver reduces the pool to a non-overlapping entity list with
// deterministic scoring and tie-breaking; a quality filter prunes degenerate
// spans. All offsets are rune offsets into the analyzed text, spans are
// half-open [start, end).
package medner

import (
	"context"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// EntityKind
// ---------------------------------------------------------------------------

// EntityKind is the closed label set for detected entities.
type EntityKind string

const (
	KindProblem   EntityKind = "PROBLEM"
	KindTreatment EntityKind = "TREATMENT"
	KindTest      EntityKind = "TEST"
)

// AllEntityKinds returns the closed label set in canonical order.
func AllEntityKinds() []EntityKind {
	return []EntityKind{KindProblem, KindTreatment, KindTest}
}

// Valid reports whether k is one of the closed labels.
func (k EntityKind) Valid() bool {
	switch k {
	case KindProblem, KindTreatment, KindTest:
		return true
	}
	return false
}

// ParseEntityKind maps a case-insensitive label string onto an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// ---------------------------------------------------------------------------
// SourceKind
// ---------------------------------------------------------------------------

// SourceKind identifies which detector produced a candidate. Model sources
// carry the ensemble aggregation variant as a sub-kind.
type SourceKind string

const (
	SourceModelSimple   SourceKind = "model_simple"
	SourceModelMax      SourceKind = "model_max"
	SourceModelAverage  SourceKind = "model_average"
	SourceModelFirst    SourceKind = "model_first"
	SourcePattern       SourceKind = "pattern"
	SourceDictionary    SourceKind = "dictionary"
	SourceMorphological SourceKind = "morphological"
)

// SourceFamily groups the model sub-kinds with the three rule sources for
// priority decisions and reporting.
type SourceFamily string

const (
	FamilyModel         SourceFamily = "MODEL"
	FamilyPattern       SourceFamily = "PATTERN"
	FamilyDictionary    SourceFamily = "DICTIONARY"
	FamilyMorphological SourceFamily = "MORPHOLOGICAL"
)

// Family maps a SourceKind onto its family.
func (s SourceKind) Family() SourceFamily {
	if strings.HasPrefix(string(s), "model_") {
		return FamilyModel
	}
	switch s {
	case SourcePattern:
		return FamilyPattern
	case SourceDictionary:
		return FamilyDictionary
	default:
		return FamilyMorphological
	}
}

// Priority orders families for tie-breaking: higher is stronger.
func (f SourceFamily) Priority() int {
	switch f {
	case FamilyModel:
		return 4
	case FamilyPattern:
		return 3
	case FamilyDictionary:
		return 2
	case FamilyMorphological:
		return 1
	}
	return 0
}

// ModelSource returns the SourceKind for an ensemble variant name, e.g.
// "max" becomes model_max.
func ModelSource(variant string) SourceKind {
	return SourceKind("model_" + strings.ToLower(variant))
}

// ---------------------------------------------------------------------------
// Candidate / Entity
// ---------------------------------------------------------------------------

// Candidate is a provisional detection from a single source, prior to
// fusion. Start and End are rune offsets into the analyzed text and Text is
// exactly the substring at [Start, End).
type Candidate struct {
	Text            string     `json:"text"`
	Label           EntityKind `json:"label"`
	Start           int        `json:"start"`
	End             int        `json:"end"`
	Confidence      float64    `json:"confidence"`
	Source          SourceKind `json:"source"`
	ContextualBoost float64    `json:"contextual_boost,omitempty"`
}

// RuneLen returns the span length in runes.
func (c Candidate) RuneLen() int {
	return c.End - c.Start
}

// Overlaps reports whether the two spans intersect.
func (c Candidate) Overlaps(other Candidate) bool {
	return c.Start < other.End && other.Start < c.End
}

// Entity is a final, non-overlapping detection. MergeProvenance records the
// sources of every candidate fused into it.
type Entity struct {
	Candidate
	MergeProvenance []SourceKind `json:"merge_provenance,omitempty"`
}

// ---------------------------------------------------------------------------
// AnalysisResult
// ---------------------------------------------------------------------------

// AnalysisResult is the JSON-serializable output of one analysis. Entities
// are ordered by Start ascending and are mutually non-overlapping.
type AnalysisResult struct {
	Text                string             `json:"text"`
	Entities            []Entity           `json:"entities"`
	EntityCounts        map[EntityKind]int `json:"entity_counts"`
	SourceDistribution  map[SourceKind]int `json:"source_distribution"`
	TotalEntities       int                `json:"total_entities"`
	AverageConfidence   float64            `json:"average_confidence"`
	ConfidenceStd       float64            `json:"confidence_std"`
	MinConfidence       float64            `json:"min_confidence"`
	MaxConfidence       float64            `json:"max_confidence"`
	AverageBoost        float64            `json:"average_boost"`
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	EnhancementApplied  bool               `json:"enhancement_applied"`
	ProcessingTimeMs    int64              `json:"processing_time_ms"`
}

// ---------------------------------------------------------------------------
// CandidateSource
// ---------------------------------------------------------------------------

// CandidateSource is one detector. Generate never fails for well-formed
// UTF-8 input: a source that breaks internally logs and returns what it has,
// so one bad rule or a slow backend cannot abort the whole analysis.
type CandidateSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Generate produces the source's candidates for text.
	Generate(ctx context.Context, text string) []Candidate
}
