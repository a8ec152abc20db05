package services

import "strings"

// lexicalOverlap scores how much of the query vocabulary appears in
// the text, in [0,1]. It is the fallback relevance signal when the
// embedding provider is unavailable, and a minor reranking term
// otherwise.
func lexicalOverlap(query, text string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	textSet := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		textSet[tok] = struct{}{}
	}

	matched := 0
	seen := make(map[string]struct{}, len(queryTokens))
	distinct := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		distinct++
		if _, ok := textSet[tok]; ok {
			matched++
		}
	}

	return float64(matched) / float64(distinct)
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		default:
			return true
		}
	})
}
