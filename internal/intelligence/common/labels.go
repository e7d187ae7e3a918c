package common

import "strings"

// BIO label scheme shared by every tagger backend. A backend emits one row
// per input token with len(EmissionLabels) columns, in exactly this order, so
// that adapters can decode emissions without backend-specific knowledge.

const (
	LabelO          = "O"
	LabelBPROBLEM   = "B-PROBLEM"
	LabelIPROBLEM   = "I-PROBLEM"
	LabelBTREATMENT = "B-TREATMENT"
	LabelITREATMENT = "I-TREATMENT"
	LabelBTEST      = "B-TEST"
	LabelITEST      = "I-TEST"
)

// EmissionLabels is the canonical column order of backend emission matrices.
var EmissionLabels = []string{
	LabelO,
	LabelBPROBLEM,
	LabelIPROBLEM,
	LabelBTREATMENT,
	LabelITREATMENT,
	LabelBTEST,
	LabelITEST,
}

// EmissionLabelIndex returns the column index of label, or -1 when unknown.
func EmissionLabelIndex(label string) int {
	for i, l := range EmissionLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// LabelCategory strips the BIO prefix: "B-PROBLEM" becomes "PROBLEM". It
// returns the empty string for the outside label.
func LabelCategory(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return ""
}

// BeginLabel returns the B- label for a category.
func BeginLabel(category string) string { return "B-" + category }

// InsideLabel returns the I- label for a category.
func InsideLabel(category string) string { return "I-" + category }
