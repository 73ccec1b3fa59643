// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// QueryInput is what a caller supplies to the ranking pipeline.
type QueryInput struct {
	// Abstracts are free-text abstracts, in caller order.
	Abstracts []string `json:"abstracts,omitempty" yaml:"abstracts,omitempty"`

	// Keywords is a flat keyword list. Entries may themselves contain
	// ";" or "," separated keywords.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// From and To are inclusive publication-date bounds. Zero means unbounded.
	From time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	To   time.Time `json:"to,omitempty" yaml:"to,omitempty"`
}

// YearBounds sets From and To from inclusive publication years. A zero year
// leaves that side unbounded.
func (q *QueryInput) YearBounds(minYear, maxYear int) {
	if minYear > 0 {
		q.From = time.Date(minYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if maxYear > 0 {
		q.To = time.Date(maxYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
}

// CleanAbstracts returns the abstracts trimmed, with empty entries removed.
func (q QueryInput) CleanAbstracts() []string {
	var out []string
	for _, a := range q.Abstracts {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// KeywordTokens returns the keywords split on ";" and ",", trimmed, with
// empty entries removed.
func (q QueryInput) KeywordTokens() []string {
	var out []string
	for _, kw := range q.Keywords {
		for _, part := range strings.FieldsFunc(kw, func(r rune) bool { return r == ';' || r == ',' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// HasBounds reports whether either publication-date bound is set.
func (q QueryInput) HasBounds() bool {
	return !q.From.IsZero() || !q.To.IsZero()
}

// IsEmpty reports whether the input carries no abstracts, keywords, or bounds.
func (q QueryInput) IsEmpty() bool {
	return len(q.CleanAbstracts()) == 0 && len(q.KeywordTokens()) == 0 && !q.HasBounds()
}
