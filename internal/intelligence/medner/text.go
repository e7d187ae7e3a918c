package medner

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

// normalizeText applies Unicode NFC so that composed and decomposed accent
// sequences ("è" vs "e"+combining grave) produce identical rune offsets.
// Everything downstream, including the offsets in the final result, refers
// to the normalized text.
func normalizeText(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// ---------------------------------------------------------------------------
// Word tokenization
// ---------------------------------------------------------------------------

// wordToken is one word with its rune span in the source text.
type wordToken struct {
	Text  string
	Start int
	End   int
}

// isWordRune treats letters, digits and intra-word hyphens as word
// characters. Apostrophes are boundaries so Italian elisions split cleanly:
// "l'esame" yields "l" and "esame", letting the lexical sources see the
// noun.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}

// tokenizeWords splits runes into word tokens with rune offsets.
func tokenizeWords(runes []rune) []wordToken {
	var tokens []wordToken
	start := -1
	for i, r := range runes {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, wordToken{Text: string(runes[start:i]), Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, wordToken{Text: string(runes[start:]), Start: start, End: len(runes)})
	}
	return tokens
}

// ---------------------------------------------------------------------------
// Byte/rune offset mapping
// ---------------------------------------------------------------------------

// buildByteToRune maps every byte offset of text (plus len(text)) to the
// rune index at or containing it. Regexp matches report byte offsets; the
// rest of the engine works in runes.
func buildByteToRune(text string) []int {
	m := make([]int, len(text)+1)
	ri := 0
	bi := 0
	for bi < len(text) {
		_, size := utf8.DecodeRuneInString(text[bi:])
		for k := 0; k < size; k++ {
			m[bi+k] = ri
		}
		bi += size
		ri++
	}
	m[len(text)] = ri
	return m
}

// ---------------------------------------------------------------------------
// Span helpers
// ---------------------------------------------------------------------------

// spansOverlap reports whether half-open spans [s1,e1) and [s2,e2)
// intersect.
func spansOverlap(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// overlapLen returns the intersection length of two half-open spans, zero
// when they are disjoint.
func overlapLen(s1, e1, s2, e2 int) int {
	lo := s1
	if s2 > lo {
		lo = s2
	}
	hi := e1
	if e2 < hi {
		hi = e2
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// significantOverlap reports whether the intersection covers more than
// fraction of either span. A small brush between two long spans is not
// significant; a short span swallowed by a long one is.
func significantOverlap(s1, e1, s2, e2 int, fraction float64) bool {
	ov := overlapLen(s1, e1, s2, e2)
	if ov == 0 {
		return false
	}
	len1 := e1 - s1
	len2 := e2 - s2
	return float64(ov) > fraction*float64(len1) || float64(ov) > fraction*float64(len2)
}

// trimSpan shrinks [start,end) past leading and trailing whitespace runes.
// It can return an empty span (start == end) for all-whitespace input.
func trimSpan(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

// containsLetter reports whether the span holds at least one letter. Spans
// of bare digits or punctuation carry no clinical meaning.
func containsLetter(runes []rune, start, end int) bool {
	for i := start; i < end; i++ {
		if unicode.IsLetter(runes[i]) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Confidence helpers
// ---------------------------------------------------------------------------

// clamp01 forces a confidence into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampCeiling forces a score into [0,ceiling].
func clampCeiling(v, ceiling float64) float64 {
	if v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
