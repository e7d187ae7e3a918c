package medner

import (
	"context"
	"regexp"
	"unicode/utf8"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Builtin pattern rules
// ---------------------------------------------------------------------------

// builtinPatternRules lists the embedded Italian clinical regexes.
// Multi-word phrase rules carry 0.85, single-word technical terms 0.80.
// Expressions stay case-insensitive and match on the raw text; span cleanup
// happens in refineBoundaries, not in the expressions themselves.
func builtinPatternRules() []PatternRule {
	return []PatternRule{
		// PROBLEM phrases.
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\b(?:(?:forte|forti|leggero|leggera|lieve|persistente|acuto|acuta|intenso|intensa)\s+)?mal\s+di\s+(?:testa|stomaco|schiena|gola|pancia|denti|orecchie)\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bdolor[ei]\s+(?:al|alla|allo|ai|alle|agli|di|del|della|dello|dei|delle)\s+\p{L}+`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bdolor[ei]\s+(?:toracic[oi]|addominal[ei]|lombar[ei]|cervical[ei]|muscolar[ei]|articolar[ei])\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bfebbre\s+(?:alta|altissima|elevata|persistente|leggera)\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\btosse\s+(?:secca|grassa|persistente|stizzosa)\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bdifficoltà\s+(?:respiratorie|a\s+respirare|di\s+concentrazione)\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\b(?:nausea|vomito|diarrea|vertigini)\s+persistent[ei]\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bperdita\s+di\s+(?:peso|appetito|coscienza|equilibrio)\b`},
		{Label: KindProblem, Confidence: 0.85,
			Expr: `(?i)\bsenso\s+di\s+(?:nausea|oppressione|soffocamento|vertigine)\b`},
		// PROBLEM single terms.
		{Label: KindProblem, Confidence: 0.80,
			Expr: `(?i)\b(?:cefalea|emicrania|vertigini|capogiri|palpitazioni|epistassi|dispnea)\b`},
		// TREATMENT phrases.
		{Label: KindTreatment, Confidence: 0.85,
			Expr: `(?i)\b(?:paracetamolo|ibuprofene|aspirina|tachipirina|amoxicillina|azitromicina|cortisone|insulina|omeprazolo)(?:\s+\d+\s*(?:mg|g|ml|ui))?\b`},
		{Label: KindTreatment, Confidence: 0.85,
			Expr: `(?i)\bterapia\s+(?:antibiotica|farmacologica|cortisonica|insulinica|del\s+dolore|a\s+base\s+di\s+\p{L}+)`},
		{Label: KindTreatment, Confidence: 0.85,
			Expr: `(?i)\btrattamento\s+(?:farmacologico|antibiotico|con\s+\p{L}+)`},
		{Label: KindTreatment, Confidence: 0.85,
			Expr: `(?i)\b(?:assunzione|somministrazione)\s+di\s+\p{L}+`},
		{Label: KindTreatment, Confidence: 0.85,
			Expr: `(?i)\bciclo\s+di\s+(?:antibiotici|cortisone|chemioterapia|radioterapia)\b`},
		// TREATMENT single terms.
		{Label: KindTreatment, Confidence: 0.80,
			Expr: `(?i)\b(?:antibiotico|antinfiammatorio|antidolorifico|analgesico|antistaminico|antipiretico)\b`},
		// TEST phrases.
		{Label: KindTest, Confidence: 0.85,
			Expr: `(?i)\besam[ei]\s+(?:del\s+sangue|delle\s+urine|delle\s+feci|obiettivo|clinico|istologico|colturale)\b`},
		{Label: KindTest, Confidence: 0.85,
			Expr: `(?i)\banalisi\s+(?:del\s+sangue|delle\s+urine|cliniche|di\s+laboratorio)\b`},
		{Label: KindTest, Confidence: 0.85,
			Expr: `(?i)\b(?:radiografia|ecografia|risonanza\s+magnetica|tomografia|scintigrafia|mammografia|colonscopia|gastroscopia|elettrocardiogramma|elettroencefalogramma|spirometria)\b`},
		{Label: KindTest, Confidence: 0.85,
			Expr: `(?i)\btampone\s+(?:nasale|faringeo|molecolare|rapido|antigenico)\b`},
		{Label: KindTest, Confidence: 0.85,
			Expr: `(?i)\b(?:prelievo|campione)\s+(?:di\s+sangue|ematico|di\s+urine)\b`},
		// TEST single terms.
		{Label: KindTest, Confidence: 0.80,
			Expr: `(?i)\btac\b`},
		{Label: KindTest, Confidence: 0.80,
			Expr: `(?i)\b(?:emocromo|glicemia|urinocoltura|biopsia)\b`},
	}
}

// ---------------------------------------------------------------------------
// Boundary refinement
// ---------------------------------------------------------------------------

// Function-word cleanup for matched spans. A rule like "dolore al ..." can
// legitimately capture a trailing preposition when \p{L}+ stops early, and
// loose rules sometimes swallow a leading article. Stripping keeps entity
// text noun-centered.
var (
	leadingStopRe = regexp.MustCompile(`^(?i)(?:il|lo|la|i|gli|le|un|una|uno|del|dello|della|dei|degli|delle|al|allo|alla|ai|agli|alle|nel|nello|nella|nei|negli|nelle|di|da|per|con|su|in|a)\s+`)

	trailingStopRe = regexp.MustCompile(`(?i)\s+(?:di|da|per|con|su|in|a|tra|fra|verso|durante|dopo|prima|senza|del|dello|della|dei|degli|delle|al|allo|alla)$`)
)

// refineBoundaries strips leading articles/prepositions and trailing
// prepositions from a rune span, then trims whitespace. It can return an
// empty span when the match was all function words.
func refineBoundaries(runes []rune, start, end int) (int, int) {
	for start < end {
		span := string(runes[start:end])
		loc := leadingStopRe.FindStringIndex(span)
		if loc == nil {
			break
		}
		start += utf8.RuneCountInString(span[:loc[1]])
	}
	for start < end {
		span := string(runes[start:end])
		loc := trailingStopRe.FindStringIndex(span)
		if loc == nil {
			break
		}
		end -= utf8.RuneCountInString(span[loc[0]:loc[1]])
	}
	return trimSpan(runes, start, end)
}

// ---------------------------------------------------------------------------
// PatternMatcher
// ---------------------------------------------------------------------------

const defaultPatternConfidence = 0.80

// compiledPattern is one ready-to-run rule.
type compiledPattern struct {
	re         *regexp.Regexp
	label      EntityKind
	confidence float64
}

// PatternMatcher detects entities with precompiled regular expressions.
// Rules are compiled once at construction; a rule that fails to compile is
// skipped and logged so one bad expression cannot take the source down.
type PatternMatcher struct {
	patterns []compiledPattern
	logger   logging.Logger
}

// NewPatternMatcher compiles rules into a matcher. Invalid rules are
// skipped and logged, construction itself never fails.
func NewPatternMatcher(rules []PatternRule, logger logging.Logger) *PatternMatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	patterns := make([]compiledPattern, 0, len(rules))
	for _, rule := range rules {
		if !rule.Label.Valid() {
			logger.Warn("pattern rule with unknown label skipped",
				logging.String("expr", rule.Expr),
				logging.String("label", string(rule.Label)))
			continue
		}
		re, err := regexp.Compile(rule.Expr)
		if err != nil {
			logger.Warn("pattern rule failed to compile, skipped",
				logging.String("expr", rule.Expr),
				logging.Err(err))
			continue
		}
		conf := rule.Confidence
		if conf <= 0 {
			conf = defaultPatternConfidence
		}
		patterns = append(patterns, compiledPattern{re: re, label: rule.Label, confidence: clamp01(conf)})
	}
	return &PatternMatcher{patterns: patterns, logger: logger}
}

// Name implements CandidateSource.
func (m *PatternMatcher) Name() string { return string(SourcePattern) }

// Generate implements CandidateSource. Offsets refer to text as given.
func (m *PatternMatcher) Generate(_ context.Context, text string) []Candidate {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	byteToRune := buildByteToRune(text)
	var out []Candidate
	for _, p := range m.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			start, end := refineBoundaries(runes, byteToRune[loc[0]], byteToRune[loc[1]])
			if start >= end {
				continue
			}
			out = append(out, Candidate{
				Text:       string(runes[start:end]),
				Label:      p.label,
				Start:      start,
				End:        end,
				Confidence: p.confidence,
				Source:     SourcePattern,
			})
		}
	}
	return out
}

// PatternCount reports the number of compiled rules.
func (m *PatternMatcher) PatternCount() int { return len(m.patterns) }

var _ CandidateSource = (*PatternMatcher)(nil)
