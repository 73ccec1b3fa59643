// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/proxima/pkg/types"
)

const (
	// PreviewLen is the rune budget of an abstract preview.
	PreviewLen = 300

	maxAuthorsLen = 200
)

var (
	lineBreakRe = regexp.MustCompile(`[\r\n\t]+`)
	controlRe   = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
)

// Item is one work in a digest.
type Item struct {
	WorkID          string  `json:"work_id" yaml:"work_id"`
	Title           string  `json:"title" yaml:"title"`
	Abstract        string  `json:"abstract" yaml:"abstract"`
	OpenAlexURL     string  `json:"openalex_url" yaml:"openalex_url"`
	Year            int     `json:"year,omitempty" yaml:"year,omitempty"`
	Venue           string  `json:"venue,omitempty" yaml:"venue,omitempty"`
	Authors         string  `json:"authors,omitempty" yaml:"authors,omitempty"`
	ScorePercent    float64 `json:"score_percent" yaml:"score_percent"`
	IsOpenAccess    bool    `json:"is_open_access" yaml:"is_open_access"`
	OAURL           string  `json:"oa_url,omitempty" yaml:"oa_url,omitempty"`
	CitedByCount    int     `json:"cited_by_count" yaml:"cited_by_count"`
	ReferencesCount int     `json:"references_count" yaml:"references_count"`
}

// NewItem converts a ranked work. ScorePercent is the mean per-query
// similarity times 100, rounded to two decimals.
func NewItem(sw types.ScoredWork) Item {
	w := sw.Work
	item := Item{
		WorkID:          w.ShortID(),
		Title:           w.Title,
		Abstract:        Truncate(w.Abstract, PreviewLen),
		Year:            w.Year,
		Venue:           w.Venue,
		Authors:         truncateRunes(strings.Join(w.Authors, ", "), maxAuthorsLen),
		ScorePercent:    math.Round(sw.MeanSimilarity()*100*100) / 100,
		IsOpenAccess:    w.OpenAccess.IsOA,
		OAURL:           w.OpenAccess.URL,
		CitedByCount:    w.CitedByCount,
		ReferencesCount: w.ReferencedWorksCount,
	}
	if item.WorkID != "" {
		item.OpenAlexURL = "https://openalex.org/" + item.WorkID
	}
	return item
}

// Digest is one rendered delivery.
type Digest struct {
	SubscriptionID string
	Email          string
	Subject        string
	SearchName     string
	Keywords       []string
	Abstracts      []string
	Items          []Item
	GeneratedAt    time.Time
}

// NewDigest assembles the digest of sub. Name and subject are sanitized and
// abstracts are shortened to previews.
func NewDigest(sub Subscription, items []Item, now time.Time) Digest {
	name := Sanitize(sub.Name)
	if name == "" {
		name = "Your search"
	}
	previews := make([]string, 0, len(sub.Abstracts))
	for _, a := range sub.Abstracts {
		previews = append(previews, Truncate(a, PreviewLen))
	}
	return Digest{
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		Subject:        "[Proxima] Weekly update for " + name,
		SearchName:     name,
		Keywords:       sub.Keywords,
		Abstracts:      previews,
		Items:          items,
		GeneratedAt:    now.UTC(),
	}
}

// WorkIDs returns the short IDs of the items.
func (d Digest) WorkIDs() []string {
	ids := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		if it.WorkID != "" {
			ids = append(ids, it.WorkID)
		}
	}
	return ids
}

// Sink delivers rendered digests.
type Sink interface {
	Send(ctx context.Context, d Digest) error
}

// Sanitize folds line breaks and tabs to single spaces, removes other
// control characters, and trims the result, so it is safe in a header line.
func Sanitize(s string) string {
	s = lineBreakRe.ReplaceAllString(s, " ")
	s = controlRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most n runes plus an ellipsis. When the cut
// contains a sentence break past 40% of n, it ends there instead.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	cut := string(r[:n])
	last := max(strings.LastIndex(cut, ". "), strings.LastIndex(cut, "? "), strings.LastIndex(cut, "! "))
	if last >= 0 && len([]rune(cut[:last])) > n*4/10 {
		cut = cut[:last+1]
	}
	return strings.TrimRight(cut, " \t\n") + "…"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var tmplFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

var digestTmpl = template.Must(template.New("digest").Funcs(tmplFuncs).Parse(`# {{.Subject}}

Generated {{.GeneratedAt.Format "2006-01-02"}} for {{.Email}}.
{{- if .Keywords}}

**Keywords:** {{join .Keywords ", "}}
{{- end}}
{{- if .Abstracts}}

## Your abstracts
{{range .Abstracts}}
> {{.}}
{{end}}
{{- end}}

## New works
{{range $i, $it := .Items}}
### {{inc $i}}. {{$it.Title}}

{{if $it.Authors}}{{$it.Authors}}. {{end}}{{if $it.Venue}}*{{$it.Venue}}*{{end}}{{if $it.Year}} ({{$it.Year}}){{end}}

Match: {{printf "%.2f" $it.ScorePercent}}% · Cited by {{$it.CitedByCount}} · {{$it.ReferencesCount}} references{{if $it.IsOpenAccess}} · Open access{{end}}

{{if $it.Abstract}}{{$it.Abstract}}

{{end}}- OpenAlex: {{$it.OpenAlexURL}}
{{- if $it.OAURL}}
- Full text: {{$it.OAURL}}
{{- end}}
{{end}}`))

// Render returns the Markdown form of d.
func Render(d Digest) ([]byte, error) {
	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("rendering digest: %w", err)
	}
	return buf.Bytes(), nil
}

// FileSink writes each digest as a Markdown file under a directory.
type FileSink struct {
	dir string
}

// NewFileSink returns a FileSink writing under dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Path returns where d is written.
func (s *FileSink) Path(d Digest) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.md", d.GeneratedAt.Format("2006-01-02"), d.SubscriptionID))
}

// Send implements Sink.
func (s *FileSink) Send(ctx context.Context, d Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Render(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating digest directory: %w", err)
	}
	return os.WriteFile(s.Path(d), data, 0o644)
}
