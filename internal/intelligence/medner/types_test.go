package medner

import "testing"

func TestEntityKind_Valid(t *testing.T) {
	for _, kind := range AllEntityKinds() {
		if !kind.Valid() {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	for _, bad := range []EntityKind{"", "problem", "DRUG", "PROBLEMS"} {
		if bad.Valid() {
			t.Errorf("kind %q should be invalid", bad)
		}
	}
}

func TestParseEntityKind(t *testing.T) {
	cases := []struct {
		in      string
		want    EntityKind
		wantErr bool
	}{
		{"PROBLEM", KindProblem, false},
		{"problem", KindProblem, false},
		{" Treatment ", KindTreatment, false},
		{"test", KindTest, false},
		{"symptom", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseEntityKind(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseEntityKind(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEntityKind(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseEntityKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSourceKind_Family(t *testing.T) {
	cases := []struct {
		source SourceKind
		want   SourceFamily
	}{
		{SourceModelSimple, FamilyModel},
		{SourceModelMax, FamilyModel},
		{SourceModelAverage, FamilyModel},
		{SourceModelFirst, FamilyModel},
		{SourcePattern, FamilyPattern},
		{SourceDictionary, FamilyDictionary},
		{SourceMorphological, FamilyMorphological},
	}
	for _, tc := range cases {
		if got := tc.source.Family(); got != tc.want {
			t.Errorf("%q.Family() = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestSourceFamily_Priority(t *testing.T) {
	if !(FamilyModel.Priority() > FamilyPattern.Priority() &&
		FamilyPattern.Priority() > FamilyDictionary.Priority() &&
		FamilyDictionary.Priority() > FamilyMorphological.Priority()) {
		t.Fatalf("family priorities out of order: model=%d pattern=%d dictionary=%d morphological=%d",
			FamilyModel.Priority(), FamilyPattern.Priority(),
			FamilyDictionary.Priority(), FamilyMorphological.Priority())
	}
}

func TestModelSource(t *testing.T) {
	if got := ModelSource("max"); got != SourceModelMax {
		t.Errorf("ModelSource(max) = %q", got)
	}
	if got := ModelSource("SIMPLE"); got != SourceModelSimple {
		t.Errorf("ModelSource(SIMPLE) = %q", got)
	}
}

func TestCandidate_Overlaps(t *testing.T) {
	a := Candidate{Start: 0, End: 5}
	cases := []struct {
		b    Candidate
		want bool
	}{
		{Candidate{Start: 5, End: 8}, false},
		{Candidate{Start: 4, End: 8}, true},
		{Candidate{Start: 0, End: 5}, true},
		{Candidate{Start: 2, End: 3}, true},
		{Candidate{Start: 8, End: 9}, false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("[0,5) overlaps [%d,%d) = %v, want %v", tc.b.Start, tc.b.End, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Errorf("[%d,%d) overlaps [0,5) = %v, want %v", tc.b.Start, tc.b.End, got, tc.want)
		}
	}
}

func TestCandidate_RuneLen(t *testing.T) {
	c := Candidate{Start: 3, End: 15}
	if c.RuneLen() != 12 {
		t.Errorf("RuneLen = %d, want 12", c.RuneLen())
	}
}
