// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/pkg/types"
)

// ErrRetrievalFailed means at least one round failed and no round produced
// any candidate.
var ErrRetrievalFailed = errors.New("candidate retrieval failed")

// CandidateSet maps work identifiers to the latest record seen. Iteration
// order is first-insertion order. Works without an identifier are ignored.
type CandidateSet struct {
	order []string
	byID  map[string]types.Work
}

// NewCandidateSet returns an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{byID: make(map[string]types.Work)}
}

// Add merges works into the set, later records replacing earlier ones with
// the same identifier. It returns how many identifiers were new.
func (s *CandidateSet) Add(works ...types.Work) int {
	added := 0
	for _, w := range works {
		if w.ID == "" {
			continue
		}
		if _, ok := s.byID[w.ID]; !ok {
			s.order = append(s.order, w.ID)
			added++
		}
		s.byID[w.ID] = w
	}
	return added
}

// Len returns the number of distinct identifiers.
func (s *CandidateSet) Len() int { return len(s.order) }

// Get returns the record for id.
func (s *CandidateSet) Get(id string) (types.Work, bool) {
	w, ok := s.byID[id]
	return w, ok
}

// Works returns the records in first-insertion order.
func (s *CandidateSet) Works() []types.Work {
	out := make([]types.Work, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// RoundReport summarizes one round of a collection.
type RoundReport struct {
	Round    Round    `json:"round" yaml:"round"`
	Query    string   `json:"query" yaml:"query"`
	Dropped  []string `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Steps    int      `json:"steps" yaml:"steps"`
	Attempts int      `json:"attempts" yaml:"attempts"`
	Results  int      `json:"results" yaml:"results"`
	New      int      `json:"new" yaml:"new"`
	Failed   bool     `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Collection is the merged output of all rounds.
type Collection struct {
	Candidates *CandidateSet
	Rounds     []RoundReport
	Errors     []*RoundError
}

// Collector runs rounds and merges their candidates.
type Collector struct {
	relaxer     *Relaxer
	minTerms    int
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithMinTerms sets the relaxation floor (default 1).
func WithMinTerms(n int) CollectorOption {
	return func(c *Collector) { c.minTerms = n }
}

// WithConcurrency bounds how many rounds search at once (default 1).
func WithConcurrency(n int) CollectorOption {
	return func(c *Collector) { c.concurrency = n }
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l *zap.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l.Named("collect")
		}
	}
}

// WithCollectorMetrics records relaxation depth.
func WithCollectorMetrics(m *metrics.Metrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector returns a Collector over r.
func NewCollector(r *Relaxer, opts ...CollectorOption) *Collector {
	c := &Collector{relaxer: r, minTerms: 1, concurrency: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

type roundOutcome struct {
	rel Relaxation
	err error
}

// Collect runs every round through relaxation and merges the results in
// round order, so the final set matches a sequential run regardless of
// concurrency. A failed round is reported in Collection.Errors and does not
// stop the others. The returned error wraps ErrRetrievalFailed, joined with
// the round errors, only when some round failed and the set is empty.
// Zero candidates without a failure is a valid empty result.
func (c *Collector) Collect(ctx context.Context, rounds []Round, perPage int, f Filter) (Collection, error) {
	outcomes := make([]roundOutcome, len(rounds))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, rd := range rounds {
		g.Go(func() error {
			rel, err := c.relaxer.Relax(ctx, i, rd.Tokens, perPage, c.minTerms, f)
			outcomes[i] = roundOutcome{rel: rel, err: err}
			return nil
		})
	}
	_ = g.Wait()

	col := Collection{Candidates: NewCandidateSet()}
	for i, rd := range rounds {
		out := outcomes[i]
		report := RoundReport{
			Round:    rd,
			Query:    out.rel.Query,
			Dropped:  out.rel.Dropped,
			Steps:    out.rel.Steps,
			Attempts: out.rel.Attempts,
			Results:  len(out.rel.Works),
		}

		if out.err != nil {
			var re *RoundError
			if !errors.As(out.err, &re) {
				re = &RoundError{Round: i, Query: out.rel.Query, Err: out.err}
			}
			report.Failed = true
			col.Errors = append(col.Errors, re)
			c.logger.Warn("round failed",
				zap.String("round", rd.Label()),
				zap.String("query", re.Query),
				zap.Error(re.Err),
			)
		} else {
			report.New = col.Candidates.Add(out.rel.Works...)
			c.metrics.ObserveRelaxationSteps(out.rel.Steps)
			c.logger.Info("round complete",
				zap.String("round", rd.Label()),
				zap.String("query", out.rel.Query),
				zap.Int("steps", out.rel.Steps),
				zap.Int("results", report.Results),
				zap.Int("new", report.New),
			)
		}
		col.Rounds = append(col.Rounds, report)
	}

	if len(col.Errors) > 0 && col.Candidates.Len() == 0 {
		errs := make([]error, len(col.Errors))
		for i, e := range col.Errors {
			errs[i] = e
		}
		return col, fmt.Errorf("%w: %w", ErrRetrievalFailed, errors.Join(errs...))
	}
	return col, nil
}
