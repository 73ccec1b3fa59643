// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the proxima pipeline:
// query input, bibliographic work records, scored results, and stage
// configuration.
//
// See docs/ARCHITECTURE.md § Data Structures.
package types

import (
	"strings"
	"time"
)

// Work is a bibliographic record returned by the keyword-search service.
// A Work lives only for the duration of one pipeline invocation.
type Work struct {
	// ID is the stable external identifier (e.g. "https://openalex.org/W2741809807").
	ID string `json:"id" yaml:"id"`

	// Title is the display title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the plain-text abstract, reconstructed from the inverted
	// index when the service does not send plain text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// DOI is the bare DOI without the https://doi.org/ prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the best landing page: open-access location, then source, then OpenAlex.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Venue is the host venue display name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Year is the publication year (0 when unknown).
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Concepts lists concept display names.
	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Topics lists topic display names.
	Topics []string `json:"topics,omitempty" yaml:"topics,omitempty"`

	// CitedByCount is the number of works citing this one.
	CitedByCount int `json:"cited_by_count" yaml:"cited_by_count"`

	// ReferencedWorksCount is the number of works this one references.
	ReferencedWorksCount int `json:"referenced_works_count" yaml:"referenced_works_count"`

	// OpenAccess describes the open-access status.
	OpenAccess OpenAccess `json:"open_access" yaml:"open_access"`

	// RelevanceScore is the service-side relevance score. Informational only;
	// ranking uses embedding similarity.
	RelevanceScore float64 `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty"`
}

// OpenAccess holds the open-access fields of a Work.
type OpenAccess struct {
	IsOA   bool   `json:"is_oa" yaml:"is_oa"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ShortID returns the trailing path segment of the identifier ("W2741809807").
func (w Work) ShortID() string {
	if i := strings.LastIndexByte(w.ID, '/'); i >= 0 {
		return w.ID[i+1:]
	}
	return w.ID
}

// TopicText joins topic names into the text of the topic embedding channel.
func (w Work) TopicText() string {
	return strings.Join(w.Topics, "; ")
}

// ConceptText joins concept names into the text of the concept embedding channel.
func (w Work) ConceptText() string {
	return strings.Join(w.Concepts, "; ")
}

// PrimaryText is the title and abstract, the primary embedding channel.
func (w Work) PrimaryText() string {
	return strings.TrimSpace(w.Title + "\n\n" + w.Abstract)
}

// SearchRequest is one call to the keyword-search service.
type SearchRequest struct {
	// Query is the free-text search string.
	Query string

	// PerPage is the page size.
	PerPage int

	// From and To are inclusive publication-date bounds. Zero means unbounded.
	From time.Time
	To   time.Time

	// Concepts optionally restricts results to the given concept IDs.
	Concepts []string

	// Sort overrides the result order (default "relevance_score:desc").
	Sort string
}

// ScoredWork is a candidate with its aggregate similarity to all query vectors.
// Contributions sum to 1.0 when TotalScore > 0 and are all zero otherwise.
type ScoredWork struct {
	TotalScore    float64   `json:"total_score" yaml:"total_score"`
	Similarities  []float64 `json:"per_query_similarities" yaml:"per_query_similarities"`
	Contributions []float64 `json:"per_query_contributions" yaml:"per_query_contributions"`
	Work          Work      `json:"work" yaml:"work"`
}

// MeanSimilarity returns the average per-query similarity, or 0 with no queries.
func (s ScoredWork) MeanSimilarity() float64 {
	if len(s.Similarities) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.Similarities {
		sum += v
	}
	return sum / float64(len(s.Similarities))
}
