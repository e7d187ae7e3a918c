package medner

import (
	"context"
	"sort"
	"strings"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Builtin term lists
// ---------------------------------------------------------------------------

// builtinDictionary is the embedded Italian clinical vocabulary, grouped by
// label. Terms are stored lowercase in singular citation form; inflected
// surface forms are reached through lookup variants.
var builtinDictionary = map[EntityKind][]string{
	KindProblem: {
		"febbre", "febbricola", "dolore", "nausea", "vomito", "tosse",
		"cefalea", "emicrania", "vertigine", "capogiro", "diarrea",
		"stipsi", "insonnia", "ansia", "depressione", "allergia", "asma",
		"diabete", "ipertensione", "ipotensione", "infezione",
		"infiammazione", "influenza", "raffreddore", "bronchite",
		"polmonite", "gastrite", "colite", "anemia", "aritmia",
		"tachicardia", "affaticamento", "stanchezza", "debolezza",
		"prurito", "eruzione", "gonfiore", "crampo", "spasmo", "lesione",
		"frattura", "contusione", "distorsione", "ustione", "emorragia",
		"epistassi", "dispnea", "palpitazione", "svenimento", "trauma",
	},
	KindTreatment: {
		"paracetamolo", "ibuprofene", "aspirina", "tachipirina",
		"amoxicillina", "antibiotico", "antivirale", "analgesico",
		"antidolorifico", "antinfiammatorio", "antistaminico",
		"antipiretico", "cortisone", "cortisonico", "insulina",
		"terapia", "trattamento", "farmaco", "medicinale", "compressa",
		"sciroppo", "pomata", "cerotto", "iniezione", "infusione",
		"vaccino", "vaccinazione", "fisioterapia", "chemioterapia",
		"radioterapia", "intervento", "operazione", "riabilitazione",
		"diuretico", "ansiolitico", "antidepressivo",
	},
	KindTest: {
		"esame", "analisi", "radiografia", "ecografia", "risonanza",
		"tac", "elettrocardiogramma", "ecg", "emocromo", "biopsia",
		"endoscopia", "gastroscopia", "colonscopia", "tampone",
		"screening", "glicemia", "colesterolo", "emoglobina",
		"urinocoltura", "spirometria", "elettroencefalogramma",
		"mammografia", "scintigrafia", "holter", "audiometria",
	},
}

// builtinDictionaryEntries flattens the builtin vocabulary into resource
// entries, sorted for stable iteration.
func builtinDictionaryEntries() []DictionaryEntry {
	var entries []DictionaryEntry
	for _, kind := range AllEntityKinds() {
		terms := append([]string(nil), builtinDictionary[kind]...)
		sort.Strings(terms)
		for _, t := range terms {
			entries = append(entries, DictionaryEntry{Term: t, Label: kind})
		}
	}
	return entries
}

// ---------------------------------------------------------------------------
// DictionaryMatcher
// ---------------------------------------------------------------------------

const defaultDictionaryConfidence = 0.75

// DictionaryMatcher detects entities by case-insensitive word lookup
// against a term table. A token matches either exactly or through Italian
// inflection variants: a swapped final vowel (singular/plural, masculine/
// feminine) or a stripped trailing "s" for invariant loanwords.
type DictionaryMatcher struct {
	terms      map[string]EntityKind
	confidence float64
	logger     logging.Logger
}

// NewDictionaryMatcher builds a matcher from entries. Entries with an
// unknown label or blank term are skipped and logged, they never fail
// construction.
func NewDictionaryMatcher(entries []DictionaryEntry, confidence float64, logger logging.Logger) *DictionaryMatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if confidence <= 0 || confidence > 1 {
		confidence = defaultDictionaryConfidence
	}
	terms := make(map[string]EntityKind, len(entries))
	for _, e := range entries {
		term := strings.ToLower(strings.TrimSpace(e.Term))
		if term == "" {
			logger.Warn("dictionary entry with empty term skipped")
			continue
		}
		if !e.Label.Valid() {
			logger.Warn("dictionary entry with unknown label skipped",
				logging.String("term", term),
				logging.String("label", string(e.Label)))
			continue
		}
		terms[term] = e.Label
	}
	return &DictionaryMatcher{terms: terms, confidence: confidence, logger: logger}
}

// Name implements CandidateSource.
func (m *DictionaryMatcher) Name() string { return string(SourceDictionary) }

// Generate implements CandidateSource. Offsets refer to text as given.
func (m *DictionaryMatcher) Generate(_ context.Context, text string) []Candidate {
	runes := []rune(text)
	var out []Candidate
	for _, tok := range tokenizeWords(runes) {
		label, ok := m.lookup(strings.ToLower(tok.Text))
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Text:       tok.Text,
			Label:      label,
			Start:      tok.Start,
			End:        tok.End,
			Confidence: m.confidence,
			Source:     SourceDictionary,
		})
	}
	return out
}

// lookup resolves a lowercase token against the term table, trying the
// exact form first and inflection variants second. Variants require at
// least three runes so elision fragments ("l", "un") cannot match.
func (m *DictionaryMatcher) lookup(word string) (EntityKind, bool) {
	if label, ok := m.terms[word]; ok {
		return label, true
	}
	runes := []rune(word)
	if len(runes) < 3 {
		return "", false
	}
	last := runes[len(runes)-1]
	switch last {
	case 'a', 'e', 'i', 'o':
		for _, v := range [...]rune{'a', 'e', 'i', 'o'} {
			if v == last {
				continue
			}
			runes[len(runes)-1] = v
			if label, ok := m.terms[string(runes)]; ok {
				return label, true
			}
		}
	case 's':
		if label, ok := m.terms[string(runes[:len(runes)-1])]; ok {
			return label, true
		}
	}
	return "", false
}

// TermCount reports the number of loaded terms.
func (m *DictionaryMatcher) TermCount() int { return len(m.terms) }

var _ CandidateSource = (*DictionaryMatcher)(nil)
