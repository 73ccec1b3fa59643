// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package phrase

import (
	"sort"
	"strings"

	"github.com/pdiddy/proxima/internal/textnorm"
)

// fallbackChars is how much raw abstract the heuristic returns when no
// token survives filtering.
const fallbackChars = 200

// heuristicStopwords are generic academic words that make poor search terms.
// Tokens of three letters or fewer are dropped before this set is consulted.
var heuristicStopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {}, "for": {}, "to": {}, "a": {}, "an": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "by": {}, "this": {}, "that": {}, "with": {},
	"we": {}, "they": {}, "it": {}, "as": {}, "at": {}, "from": {}, "into": {}, "using": {}, "our": {},
	"can": {}, "will": {}, "these": {}, "those": {}, "such": {}, "their": {}, "also": {}, "have": {},
	"has": {}, "had": {}, "between": {}, "within": {}, "over": {}, "under": {}, "than": {}, "then": {},
	"based": {}, "use": {}, "used": {}, "paper": {}, "study": {}, "system": {},
	"systems": {}, "method": {}, "methods": {}, "results": {}, "show": {}, "shows": {},
}

// Heuristic picks the maxTerms most frequent informative tokens of abstract,
// ties broken by first occurrence, and joins them with spaces. When nothing
// survives filtering it returns the first 200 characters of abstract as-is.
func Heuristic(abstract string, maxTerms int) string {
	tokens := textnorm.Tokens(abstract)

	freq := make(map[string]int)
	first := make(map[string]int)
	var order []string
	for i, tok := range tokens {
		if len(tok) <= 3 {
			continue
		}
		if _, stop := heuristicStopwords[tok]; stop {
			continue
		}
		if _, seen := first[tok]; !seen {
			first[tok] = i
			order = append(order, tok)
		}
		freq[tok]++
	}

	if len(order) == 0 {
		return truncateRunes(abstract, fallbackChars)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if freq[a] != freq[b] {
			return freq[a] > freq[b]
		}
		return first[a] < first[b]
	})

	if maxTerms > 0 && len(order) > maxTerms {
		order = order[:maxTerms]
	}
	return strings.Join(order, " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

