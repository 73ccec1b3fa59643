// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package phrase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Delimiter separates phrases in a model response.
const Delimiter = ";"

// MaxPhraseWords is the longest phrase accepted from a model. Longer
// fragments indicate prose rather than keywords.
const MaxPhraseWords = 6

var listMarkerRe = regexp.MustCompile(`^(?:[-*•+]|\d+[.)]|\(\d+\))\s`)

// Response rejection reasons.
var (
	ErrEmptyResponse = errors.New("empty response")
	ErrMultiLine     = errors.New("response spans multiple lines")
	ErrCodeFence     = errors.New("response wrapped in code fence")
	ErrListMarker    = errors.New("response uses list markers")
	ErrNoPhrases     = errors.New("response has no phrases")
)

// Parse splits raw on the delimiter, trims each part, drops empties, and
// truncates to maxTerms. When raw has no non-empty delimited part its
// whitespace-separated words are used instead.
func Parse(raw string, maxTerms int) []string {
	var phrases []string
	for _, p := range strings.Split(raw, Delimiter) {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		phrases = append(phrases, strings.Fields(raw)...)
	}
	if maxTerms > 0 && len(phrases) > maxTerms {
		phrases = phrases[:maxTerms]
	}
	return phrases
}

// validateResponse enforces the single-line, delimiter-separated contract on
// a model response and returns its phrases.
func validateResponse(raw string, maxTerms int) ([]string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	if strings.HasPrefix(text, "```") {
		return nil, ErrCodeFence
	}

	lines := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	if lines > 1 {
		return nil, ErrMultiLine
	}
	if listMarkerRe.MatchString(text) {
		return nil, ErrListMarker
	}

	var phrases []string
	for _, p := range strings.Split(text, Delimiter) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n := len(strings.Fields(p)); n > MaxPhraseWords {
			return nil, fmt.Errorf("phrase %q has %d words, limit %d", p, n, MaxPhraseWords)
		}
		if strings.Contains(p, ":") {
			return nil, fmt.Errorf("phrase %q looks like a label", p)
		}
		phrases = append(phrases, p)
	}
	if len(phrases) == 0 {
		return nil, ErrNoPhrases
	}
	if len(phrases) > maxTerms {
		phrases = phrases[:maxTerms]
	}
	return phrases, nil
}
