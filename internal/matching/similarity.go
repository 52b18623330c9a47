package matching

import (
	"strings"
	"unicode"
)

// Similarity scores how alike two field labels are, in [0,1].
//
// Labels are compared on their lowercase alphanumeric form: identical forms
// score 1.0 and one form containing the other scores 0.8. The last step is a
// Jaccard index over the whitespace tokens of the normalized forms, which
// hold a single token each, so distinct labels that share no containment
// score 0
func Similarity(a, b string) float64 {
	return similarity(a, b, tokens)
}

// WordSimilarity is Similarity with the last step taken over the labels'
// word sets instead, so "Primary Board Certification" and "Board
// Certification Expiration Status" share two of five words and score 0.4
func WordSimilarity(a, b string) float64 {
	return similarity(a, b, words)
}

func similarity(a, b string, split func(raw, normalized string) map[string]struct{}) float64 {
	na, nb := normalize(a), normalize(b)

	if na == nb {
		return 1.0
	}

	// An empty form is a substring of everything; it carries no signal
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.8
	}

	return jaccard(split(a, na), split(b, nb))
}

// normalize lowercases s and drops every rune that is not a letter or digit
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokens splits the normalized form on whitespace
func tokens(_, normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

// words splits the raw label into its set of lowercase alphanumeric runs
func words(raw, _ string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool { return !isAlnum(r) }) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	union := len(a)
	inter := 0
	for w := range b {
		if _, ok := a[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func isAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
