// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex is a client for the OpenAlex works search endpoint.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/httputil"
	"github.com/pdiddy/proxima/pkg/types"
)

// DefaultBaseURL is the OpenAlex works endpoint.
const DefaultBaseURL = "https://api.openalex.org/works"

const (
	defaultPerPage = 30
	maxPerPage     = 200
	defaultSort    = "relevance_score:desc"
	dateLayout     = "2006-01-02"
)

// baseFilters are applied to every search.
var baseFilters = []string{"language:en", "has_abstract:true"}

// StatusError reports a non-200 response after retries are exhausted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("OpenAlex API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("OpenAlex API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client queries the OpenAlex works endpoint.
type Client struct {
	baseURL   string
	mailto    string
	userAgent string
	retrier   *httputil.Retrier
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the works endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithMailto sets the polite-pool contact address.
func WithMailto(email string) Option {
	return func(c *Client) { c.mailto = email }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetrier replaces the HTTP retrier.
func WithRetrier(r *httputil.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("openalex")
		}
	}
}

// New returns a Client using the default endpoint and a retrier over
// http.DefaultClient unless options say otherwise.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = httputil.NewRetrier(nil, 0, c.logger)
	}
	return c
}

// NewFromConfig builds a Client from stage configuration.
func NewFromConfig(cfg types.OpenAlexConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []Option{
		WithMailto(cfg.Mailto),
		WithUserAgent(cfg.UserAgent),
		WithLogger(logger),
		WithRetrier(httputil.NewRetrier(httpClient, cfg.MaxRetries, logger)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(opts...)
}

// Search runs one keyword search and returns the first page of works.
// A query with no results returns an empty slice and no error.
func (c *Client) Search(ctx context.Context, sr types.SearchRequest) ([]types.Work, error) {
	reqURL := c.baseURL + "?" + c.params(sr).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var oar searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	works := make([]types.Work, 0, len(oar.Results))
	for _, w := range oar.Results {
		works = append(works, w.toWork())
	}

	c.logger.Debug("search",
		zap.String("query", sr.Query),
		zap.Int("results", len(works)),
		zap.Int("count", oar.Meta.Count),
	)
	return works, nil
}

func (c *Client) params(sr types.SearchRequest) url.Values {
	perPage := sr.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filters := append([]string{}, baseFilters...)
	if !sr.From.IsZero() {
		filters = append(filters, "from_publication_date:"+sr.From.Format(dateLayout))
	}
	if !sr.To.IsZero() {
		filters = append(filters, "to_publication_date:"+sr.To.Format(dateLayout))
	}
	if len(sr.Concepts) > 0 {
		filters = append(filters, "concepts.id:"+strings.Join(sr.Concepts, "|"))
	}

	sortBy := sr.Sort
	if sortBy == "" {
		sortBy = defaultSort
	}

	params := url.Values{
		"filter":   {strings.Join(filters, ",")},
		"per_page": {strconv.Itoa(perPage)},
		"sort":     {sortBy},
	}
	if q := strings.TrimSpace(sr.Query); q != "" {
		params.Set("search", q)
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	return params
}

// ReconstructAbstract converts an abstract_inverted_index back to plain
// text: (position, word) pairs sorted by position, joined with spaces.
func ReconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pos != pairs[j].pos {
			return pairs[i].pos < pairs[j].pos
		}
		return pairs[i].word < pairs[j].word
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

func (w work) toWork() types.Work {
	out := types.Work{
		ID:                   w.ID,
		Title:                firstNonEmpty(w.DisplayName, w.Title),
		Abstract:             w.Abstract,
		DOI:                  strings.TrimPrefix(w.DOI, "https://doi.org/"),
		Year:                 w.PublicationYear,
		CitedByCount:         w.CitedByCount,
		ReferencedWorksCount: len(w.ReferencedWorks),
		OpenAccess: types.OpenAccess{
			IsOA:   w.OpenAccess.IsOA,
			Status: w.OpenAccess.OAStatus,
			URL:    firstNonEmpty(w.BestOALocation.url(), w.OpenAccess.OAURL),
		},
	}
	if out.Abstract == "" {
		out.Abstract = ReconstructAbstract(w.AbstractInvertedIndex)
	}
	if w.RelevanceScore != nil {
		out.RelevanceScore = *w.RelevanceScore
	}

	var src source
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		src = *w.PrimaryLocation.Source
	}
	out.Venue = firstNonEmpty(w.HostVenue.DisplayName, src.DisplayName)
	out.URL = firstNonEmpty(w.BestOALocation.url(), src.URL, w.HostVenue.URL, w.ID)

	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			out.Authors = append(out.Authors, a.Author.DisplayName)
		}
	}
	for _, c := range w.Concepts {
		if c.DisplayName != "" {
			out.Concepts = append(out.Concepts, c.DisplayName)
		}
	}
	for _, t := range w.Topics {
		if t.DisplayName != "" {
			out.Topics = append(out.Topics, t.DisplayName)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// OpenAlex API JSON structures.
type searchResponse struct {
	Meta    meta   `json:"meta"`
	Results []work `json:"results"`
}

type meta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type work struct {
	ID                    string           `json:"id"`
	DisplayName           string           `json:"display_name"`
	Title                 string           `json:"title"`
	DOI                   string           `json:"doi"`
	PublicationYear       int              `json:"publication_year"`
	Abstract              string           `json:"abstract"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []authorship     `json:"authorships"`
	Concepts              []named          `json:"concepts"`
	Topics                []named          `json:"topics"`
	CitedByCount          int              `json:"cited_by_count"`
	ReferencedWorks       []string         `json:"referenced_works"`
	RelevanceScore        *float64         `json:"relevance_score"`
	HostVenue             source           `json:"host_venue"`
	PrimaryLocation       *location        `json:"primary_location"`
	BestOALocation        *location        `json:"best_oa_location"`
	OpenAccess            openAccess       `json:"open_access"`
}

type authorship struct {
	Author named `json:"author"`
}

type named struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type source struct {
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

type location struct {
	URL            string  `json:"url"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Source         *source `json:"source"`
}

func (l *location) url() string {
	if l == nil {
		return ""
	}
	return firstNonEmpty(l.URL, l.LandingPageURL, l.PDFURL)
}

type openAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}
