// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve collects candidate works from the keyword-search service.
// Each round searches with a token list and relaxes it, one token at a time,
// until the service returns results or the floor is reached.
package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/pkg/types"
)

// Searcher runs one keyword search.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) ([]types.Work, error)
}

// Filter is passed through unchanged to every search of every round.
type Filter struct {
	From     time.Time
	To       time.Time
	Concepts []string
}

// Relaxation is the outcome of one relaxation round.
type Relaxation struct {
	// Works are the results of the first non-empty search, or nil.
	Works []types.Work

	// Query is the last query string tried (the most relaxed one when
	// Works is empty).
	Query string

	// Dropped lists removed tokens in removal order.
	Dropped []string

	// Steps is the number of tokens dropped.
	Steps int

	// Attempts is the number of searches issued.
	Attempts int
}

// RoundError reports a transport or service failure during a round. It is
// never folded into an empty result.
type RoundError struct {
	Round int
	Query string
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round %d query %q: %v", e.Round, e.Query, e.Err)
}

func (e *RoundError) Unwrap() error { return e.Err }

// Relaxer runs relaxation rounds against a Searcher.
type Relaxer struct {
	searcher Searcher
	policy   DropPolicy
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// RelaxerOption configures a Relaxer.
type RelaxerOption func(*Relaxer)

// WithDropPolicy replaces the default random policy.
func WithDropPolicy(p DropPolicy) RelaxerOption {
	return func(r *Relaxer) { r.policy = p }
}

// WithRelaxerLogger sets the logger.
func WithRelaxerLogger(l *zap.Logger) RelaxerOption {
	return func(r *Relaxer) {
		if l != nil {
			r.logger = l.Named("relax")
		}
	}
}

// WithRelaxerMetrics records search outcomes.
func WithRelaxerMetrics(m *metrics.Metrics) RelaxerOption {
	return func(r *Relaxer) { r.metrics = m }
}

// NewRelaxer returns a Relaxer over s.
func NewRelaxer(s Searcher, opts ...RelaxerOption) *Relaxer {
	r := &Relaxer{searcher: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy = NewRandomDrop(0)
	}
	return r
}

// Relax searches with all tokens joined by spaces. On an empty result with
// more than minTerms tokens left it drops one token chosen by the policy and
// retries. It stops at the first non-empty result or when minTerms tokens
// give nothing. It never searches with fewer than minTerms tokens; a token
// list shorter than minTerms issues no search at all. minTerms below 1 is
// treated as 1. The input slice is not modified.
func (r *Relaxer) Relax(ctx context.Context, round int, tokens []string, perPage, minTerms int, f Filter) (Relaxation, error) {
	if minTerms < 1 {
		minTerms = 1
	}

	current := append([]string(nil), tokens...)
	rel := Relaxation{Query: strings.Join(current, " ")}
	if len(current) < minTerms {
		return rel, nil
	}

	for {
		rel.Query = strings.Join(current, " ")
		rel.Attempts++

		works, err := r.searcher.Search(ctx, types.SearchRequest{
			Query:    rel.Query,
			PerPage:  perPage,
			From:     f.From,
			To:       f.To,
			Concepts: f.Concepts,
		})
		if err != nil {
			r.metrics.IncSearchRequest(metrics.OutcomeError)
			return rel, &RoundError{Round: round, Query: rel.Query, Err: err}
		}

		if len(works) > 0 {
			r.metrics.IncSearchRequest(metrics.OutcomeHit)
			r.logger.Debug("search hit",
				zap.Int("round", round),
				zap.String("query", rel.Query),
				zap.Int("results", len(works)),
			)
			rel.Works = works
			return rel, nil
		}
		r.metrics.IncSearchRequest(metrics.OutcomeEmpty)

		if len(current) <= minTerms {
			r.logger.Debug("relaxation exhausted", zap.Int("round", round), zap.String("query", rel.Query))
			return rel, nil
		}

		idx := r.policy.Drop(round, rel.Steps, current)
		if idx < 0 || idx >= len(current) {
			idx = len(current) - 1
		}
		dropped := current[idx]
		current = append(current[:idx], current[idx+1:]...)
		rel.Dropped = append(rel.Dropped, dropped)
		rel.Steps++

		r.logger.Debug("no results, dropping token",
			zap.Int("round", round),
			zap.String("dropped", dropped),
			zap.Strings("remaining", current),
		)
	}
}
