package medner

import (
	"context"
	"testing"
)

func findCandidate(t *testing.T, cands []Candidate, text string) *Candidate {
	t.Helper()
	for i := range cands {
		if cands[i].Text == text {
			return &cands[i]
		}
	}
	return nil
}

func TestDictionaryMatcher_ExactMatch(t *testing.T) {
	m := NewDictionaryMatcher(builtinDictionaryEntries(), 0.75, nil)
	cands := m.Generate(context.Background(), "Il paziente ha la febbre.")

	c := findCandidate(t, cands, "febbre")
	if c == nil {
		t.Fatalf("no candidate for febbre in %v", cands)
	}
	if c.Label != KindProblem {
		t.Errorf("label = %q, want PROBLEM", c.Label)
	}
	if c.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", c.Confidence)
	}
	if c.Source != SourceDictionary {
		t.Errorf("source = %q", c.Source)
	}
}

func TestDictionaryMatcher_CaseInsensitive(t *testing.T) {
	m := NewDictionaryMatcher(builtinDictionaryEntries(), 0.75, nil)
	cands := m.Generate(context.Background(), "FEBBRE alta")
	if findCandidate(t, cands, "FEBBRE") == nil {
		t.Fatalf("uppercase form not matched: %v", cands)
	}
}

func TestDictionaryMatcher_PluralVariant(t *testing.T) {
	m := NewDictionaryMatcher(builtinDictionaryEntries(), 0.75, nil)

	// "dolori" is not stored; it reaches "dolore" through the final-vowel
	// swap. Same for "crampi" -> "crampo" and "esami" -> "esame".
	for _, word := range []string{"dolori", "crampi", "esami"} {
		cands := m.Generate(context.Background(), "ha "+word+" diffusi")
		if findCandidate(t, cands, word) == nil {
			t.Errorf("inflected form %q not matched", word)
		}
	}
}

func TestDictionaryMatcher_TrailingS(t *testing.T) {
	entries := []DictionaryEntry{{Term: "screening", Label: KindTest}, {Term: "test", Label: KindTest}}
	m := NewDictionaryMatcher(entries, 0.75, nil)
	cands := m.Generate(context.Background(), "due tests di controllo")
	if findCandidate(t, cands, "tests") == nil {
		t.Fatalf("trailing-s variant not matched: %v", cands)
	}
}

func TestDictionaryMatcher_ElisionFragmentIgnored(t *testing.T) {
	m := NewDictionaryMatcher(builtinDictionaryEntries(), 0.75, nil)
	// "l'esame" tokenizes as "l" + "esame": the fragment must not match,
	// the noun must.
	cands := m.Generate(context.Background(), "l'esame di oggi")
	if findCandidate(t, cands, "l") != nil {
		t.Error("single-letter fragment matched")
	}
	if findCandidate(t, cands, "esame") == nil {
		t.Error("esame not matched after elision")
	}
}

func TestDictionaryMatcher_RuneOffsets(t *testing.T) {
	m := NewDictionaryMatcher(builtinDictionaryEntries(), 0.75, nil)
	text := "È già nota la febbre."
	cands := m.Generate(context.Background(), text)
	c := findCandidate(t, cands, "febbre")
	if c == nil {
		t.Fatalf("febbre not found in %v", cands)
	}
	runes := []rune(text)
	if got := string(runes[c.Start:c.End]); got != "febbre" {
		t.Errorf("span [%d,%d) slices to %q", c.Start, c.End, got)
	}
}

func TestNewDictionaryMatcher_SkipsBadEntries(t *testing.T) {
	entries := []DictionaryEntry{
		{Term: "febbre", Label: KindProblem},
		{Term: "", Label: KindProblem},
		{Term: "xyz", Label: "SYMPTOM"},
	}
	m := NewDictionaryMatcher(entries, 0.75, nil)
	if m.TermCount() != 1 {
		t.Fatalf("TermCount = %d, want 1", m.TermCount())
	}
}

func TestNewDictionaryMatcher_ConfidenceFallback(t *testing.T) {
	m := NewDictionaryMatcher([]DictionaryEntry{{Term: "febbre", Label: KindProblem}}, 0, nil)
	cands := m.Generate(context.Background(), "febbre")
	if len(cands) != 1 || cands[0].Confidence != defaultDictionaryConfidence {
		t.Fatalf("fallback confidence not applied: %v", cands)
	}
}
