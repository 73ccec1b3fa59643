// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proxima/pkg/types"
)

const dateLayout = "2006-01-02"

// QueryFile is a saved query. Year bounds and date bounds may be combined;
// explicit dates win.
type QueryFile struct {
	Name      string   `yaml:"name,omitempty"`
	Abstracts []string `yaml:"abstracts,omitempty"`
	Keywords  []string `yaml:"keywords,omitempty"`
	YearMin   int      `yaml:"year_min,omitempty"`
	YearMax   int      `yaml:"year_max,omitempty"`
	From      string   `yaml:"from,omitempty"`
	To        string   `yaml:"to,omitempty"`
	Concepts  []string `yaml:"concepts,omitempty"`
	TopK      int      `yaml:"top_k,omitempty"`
	Centroid  bool     `yaml:"centroid,omitempty"`

	// Path is where the file was loaded from.
	Path string `yaml:"-"`
}

// Input converts the file to a pipeline input.
func (q QueryFile) Input() (types.QueryInput, error) {
	in := types.QueryInput{Abstracts: q.Abstracts, Keywords: q.Keywords}
	in.YearBounds(q.YearMin, q.YearMax)

	if q.From != "" {
		t, err := time.Parse(dateLayout, q.From)
		if err != nil {
			return in, fmt.Errorf("parsing from %q: %w", q.From, err)
		}
		in.From = t
	}
	if q.To != "" {
		t, err := time.Parse(dateLayout, q.To)
		if err != nil {
			return in, fmt.Errorf("parsing to %q: %w", q.To, err)
		}
		in.To = t
	}
	if !in.From.IsZero() && !in.To.IsZero() && in.To.Before(in.From) {
		return in, fmt.Errorf("date range ends before it starts: %s to %s",
			in.From.Format(dateLayout), in.To.Format(dateLayout))
	}
	return in, nil
}

// Apply overlays the file's per-query settings on opts.
func (q QueryFile) Apply(opts Options) Options {
	if q.TopK > 0 {
		opts.TopK = q.TopK
	}
	if len(q.Concepts) > 0 {
		opts.Concepts = q.Concepts
	}
	if q.Centroid {
		opts.Centroid = true
	}
	return opts
}

// LoadQueryFile reads one YAML query file. A file without a name is named
// after its base name.
func LoadQueryFile(path string) (QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QueryFile{}, fmt.Errorf("reading query file: %w", err)
	}
	var q QueryFile
	if err := yaml.Unmarshal(data, &q); err != nil {
		return QueryFile{}, fmt.Errorf("parsing query file %s: %w", path, err)
	}
	q.Path = path
	if q.Name == "" {
		q.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return q, nil
}

// GlobQueryFiles loads every file matching pattern, which may use "**".
// Matches are loaded in lexical order.
func GlobQueryFiles(pattern string) ([]QueryFile, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid query pattern %q", pattern)
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(paths)

	files := make([]QueryFile, 0, len(paths))
	for _, p := range paths {
		q, err := LoadQueryFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, q)
	}
	return files, nil
}

// ResultFile is the saved outcome of one query file.
type ResultFile struct {
	Query       QueryFile     `yaml:"query"`
	GeneratedAt time.Time     `yaml:"generated_at"`
	Summary     ResultSummary `yaml:"summary"`
	Results     []RankedItem  `yaml:"results"`
}

// ResultSummary counts what a run did.
type ResultSummary struct {
	Rounds       int `yaml:"rounds"`
	FailedRounds int `yaml:"failed_rounds"`
	Candidates   int `yaml:"candidates"`
	Skipped      int `yaml:"skipped"`
	QueryVectors int `yaml:"query_vectors"`
	Ranked       int `yaml:"ranked"`
}

// RankedItem is one ranked work in a ResultFile.
type RankedItem struct {
	Rank          int       `yaml:"rank"`
	ID            string    `yaml:"id"`
	Title         string    `yaml:"title"`
	Year          int       `yaml:"year,omitempty"`
	DOI           string    `yaml:"doi,omitempty"`
	URL           string    `yaml:"url,omitempty"`
	TotalScore    float64   `yaml:"total_score"`
	Similarities  []float64 `yaml:"per_query_similarities"`
	Contributions []float64 `yaml:"per_query_contributions"`
}

// NewResultFile summarizes res for q.
func NewResultFile(q QueryFile, res *Result, now time.Time) ResultFile {
	rf := ResultFile{Query: q, GeneratedAt: now.UTC()}
	if res == nil {
		return rf
	}
	rf.Summary = ResultSummary{
		Rounds:       len(res.Rounds),
		FailedRounds: len(res.RoundErrors),
		Candidates:   res.Candidates,
		Skipped:      res.Skipped,
		QueryVectors: res.QueryVectors,
		Ranked:       len(res.Ranked),
	}
	for i, sw := range res.Ranked {
		rf.Results = append(rf.Results, RankedItem{
			Rank:          i + 1,
			ID:            sw.Work.ID,
			Title:         sw.Work.Title,
			Year:          sw.Work.Year,
			DOI:           sw.Work.DOI,
			URL:           sw.Work.URL,
			TotalScore:    sw.TotalScore,
			Similarities:  sw.Similarities,
			Contributions: sw.Contributions,
		})
	}
	return rf
}

// WriteResultFile writes rf as YAML, creating parent directories.
func WriteResultFile(path string, rf ResultFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating result directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
