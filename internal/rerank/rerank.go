// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank scores candidate works against every query vector and
// orders them by total similarity, attributing each total to its queries.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/embed"
	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/pkg/types"
)

// ErrNoQueryVectors means there is nothing to rank against.
var ErrNoQueryVectors = errors.New("no usable query vectors")

const defaultWorkers = 4

// Embedder builds the fused vector of a work. *embed.Builder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, ch embed.Channels) ([]float32, error)
}

// Stats counts what happened to the candidates of one call.
type Stats struct {
	Candidates int `json:"candidates" yaml:"candidates"`
	Scored     int `json:"scored" yaml:"scored"`
	Skipped    int `json:"skipped" yaml:"skipped"`
}

// Reranker embeds candidates concurrently and scores them.
type Reranker struct {
	embedder Embedder
	workers  int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithWorkers bounds concurrent candidate embedding (default 4).
func WithWorkers(n int) Option {
	return func(r *Reranker) { r.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reranker) {
		if l != nil {
			r.logger = l.Named("rerank")
		}
	}
}

// WithMetrics records skipped candidates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reranker) { r.metrics = m }
}

// New returns a Reranker using e for candidate vectors.
func New(e Embedder, opts ...Option) *Reranker {
	r := &Reranker{embedder: e, workers: defaultWorkers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Channels returns the embedding channels of a work: title and abstract as
// primary, topics and concepts joined with "; " as the other two.
func Channels(w types.Work) embed.Channels {
	return embed.Channels{
		Primary: w.PrimaryText(),
		Topic:   w.TopicText(),
		Concept: w.ConceptText(),
	}
}

// Rerank embeds every work, sums its cosine similarity to each query vector,
// and returns the works sorted by total descending, truncated to topK
// (topK <= 0 keeps all). Ties keep the input order. Works whose embedding
// fails, or whose dimension differs from the queries, are logged and
// skipped. Contributions are similarity over total when the total is
// positive, and all zero otherwise.
func (r *Reranker) Rerank(ctx context.Context, works []types.Work, queryVectors [][]float32, topK int) ([]types.ScoredWork, Stats, error) {
	stats := Stats{Candidates: len(works)}
	if len(queryVectors) == 0 {
		return nil, stats, ErrNoQueryVectors
	}
	dim := len(queryVectors[0])
	for i, q := range queryVectors {
		if len(q) != dim || dim == 0 {
			return nil, stats, fmt.Errorf("query vector %d has dimension %d, want %d", i, len(q), dim)
		}
	}

	vecs, err := r.embedAll(ctx, works)
	if err != nil {
		return nil, stats, err
	}

	scored := make([]types.ScoredWork, 0, len(works))
	for i, w := range works {
		v := vecs[i]
		if v == nil {
			stats.Skipped++
			continue
		}
		if len(v) != dim {
			stats.Skipped++
			r.metrics.IncEmbeddingFailure(metrics.KindCandidate)
			r.logger.Warn("skipping candidate with mismatched dimension",
				zap.String("id", w.ID), zap.Int("dim", len(v)), zap.Int("want", dim))
			continue
		}
		scored = append(scored, Score(w, v, queryVectors))
	}
	stats.Scored = len(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, stats, nil
}

// Score computes the similarities, total, and contributions of one work.
func Score(w types.Work, v []float32, queryVectors [][]float32) types.ScoredWork {
	sims := make([]float64, len(queryVectors))
	var total float64
	for i, q := range queryVectors {
		sims[i] = embed.Dot(q, v)
		total += sims[i]
	}

	contribs := make([]float64, len(sims))
	if total > 0 {
		for i, s := range sims {
			contribs[i] = s / total
		}
	}
	return types.ScoredWork{
		TotalScore:    total,
		Similarities:  sims,
		Contributions: contribs,
		Work:          w,
	}
}

// embedAll returns one vector per work, nil where embedding failed.
func (r *Reranker) embedAll(ctx context.Context, works []types.Work) ([][]float32, error) {
	vecs := make([][]float32, len(works))
	if len(works) == 0 {
		return vecs, nil
	}

	pool, err := ants.NewPool(min(r.workers, len(works)))
	if err != nil {
		return nil, fmt.Errorf("creating embedding pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range works {
		task := func() {
			defer wg.Done()
			v, err := r.embedder.Embed(ctx, Channels(works[i]))
			if err != nil {
				r.metrics.IncEmbeddingFailure(metrics.KindCandidate)
				r.logger.Warn("skipping candidate", zap.String("id", works[i].ID), zap.Error(err))
				return
			}
			vecs[i] = v
		}
		wg.Add(1)
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vecs, nil
}
