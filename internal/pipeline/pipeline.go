// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline ranks scholarly works against a set of abstracts and
// keywords. A run extracts phrases per abstract, collects candidates through
// relaxation rounds, builds query vectors, and reranks the candidates.
// See docs/ARCHITECTURE § Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/proxima/internal/embed"
	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/internal/phrase"
	"github.com/pdiddy/proxima/internal/rerank"
	"github.com/pdiddy/proxima/internal/retrieve"
	"github.com/pdiddy/proxima/pkg/types"
)

// Sentinel errors.
var (
	// ErrEmptyQuery means the input has no abstracts, keywords, or date bounds.
	ErrEmptyQuery = errors.New("query has no abstracts, keywords, or date bounds")

	// ErrNoQueryVectors means every query embedding failed.
	ErrNoQueryVectors = rerank.ErrNoQueryVectors
)

const tracerName = "github.com/pdiddy/proxima/internal/pipeline"

// Options tune one run. Zero fields take the defaults of DefaultOptions.
type Options struct {
	// MaxTerms is the phrase budget per abstract.
	MaxTerms int

	// PerGroup is the page size of every relaxation round.
	PerGroup int

	// TopK truncates the ranked list.
	TopK int

	// Centroid builds a single query vector from the mean of all abstracts
	// instead of one vector per abstract.
	Centroid bool

	// Concepts optionally restricts every search to these concept IDs.
	Concepts []string
}

// DefaultOptions returns MaxTerms 3, PerGroup 30, TopK 90.
func DefaultOptions() Options {
	return Options{MaxTerms: phrase.DefaultMaxTerms, PerGroup: 30, TopK: 90}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTerms <= 0 {
		o.MaxTerms = d.MaxTerms
	}
	if o.PerGroup <= 0 {
		o.PerGroup = d.PerGroup
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	return o
}

// Result is the outcome of a run.
type Result struct {
	// Extractions holds one phrase list per non-empty abstract, in input order.
	Extractions []phrase.Result `json:"extractions" yaml:"extractions"`

	Rounds []retrieve.RoundReport `json:"rounds" yaml:"rounds"`

	// RoundErrors lists the rounds that failed. A run with some failed
	// rounds still ranks whatever the others found.
	RoundErrors []*retrieve.RoundError `json:"-" yaml:"-"`

	QueryVectors int `json:"query_vectors" yaml:"query_vectors"`
	Candidates   int `json:"candidates" yaml:"candidates"`
	Skipped      int `json:"skipped" yaml:"skipped"`

	Ranked []types.ScoredWork `json:"ranked" yaml:"ranked"`
}

// Degraded reports whether some retrieval round failed.
func (r *Result) Degraded() bool { return len(r.RoundErrors) > 0 }

// Pipeline wires the stages together.
type Pipeline struct {
	extractor   *phrase.Extractor
	collector   *retrieve.Collector
	builder     *embed.Builder
	reranker    *rerank.Reranker
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds parallel phrase extraction (default 1).
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l.Named("pipeline")
		}
	}
}

// WithMetrics records run duration, candidate counts, and query embedding
// failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New returns a Pipeline over the given stages.
func New(ex *phrase.Extractor, col *retrieve.Collector, b *embed.Builder, rr *rerank.Reranker, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   ex,
		collector:   col,
		builder:     b,
		reranker:    rr,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Run ranks candidate works for in. An input with no candidates is a valid
// empty result. Failing to build any query vector is ErrNoQueryVectors. The
// error wraps retrieve.ErrRetrievalFailed when every round either failed or
// found nothing and at least one failed.
func (p *Pipeline) Run(ctx context.Context, in types.QueryInput, opts Options) (res *Result, err error) {
	if in.IsEmpty() {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run")
	start := time.Now()
	defer func() {
		p.metrics.ObservePipelineDuration(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	abstracts := in.CleanAbstracts()
	keywords := in.KeywordTokens()
	span.SetAttributes(
		attribute.Int("abstracts", len(abstracts)),
		attribute.Int("keywords", len(keywords)),
	)

	res = &Result{}
	res.Extractions, err = p.extract(ctx, abstracts, opts.MaxTerms)
	if err != nil {
		return nil, err
	}

	rounds := retrieve.BuildRounds(phraseLists(res.Extractions), keywords)
	col, err := p.collect(ctx, rounds, opts.PerGroup, retrieve.Filter{From: in.From, To: in.To, Concepts: opts.Concepts})
	res.Rounds = col.Rounds
	res.RoundErrors = col.Errors
	if err != nil {
		return res, err
	}

	res.Candidates = col.Candidates.Len()
	p.metrics.ObserveCandidates(res.Candidates)
	if res.Candidates == 0 {
		p.logger.Info("no candidates collected", zap.Int("rounds", len(rounds)))
		return res, nil
	}

	queryVectors := p.queryVectors(ctx, abstracts, keywords, res.Extractions, opts.Centroid)
	res.QueryVectors = len(queryVectors)
	if len(queryVectors) == 0 {
		return res, ErrNoQueryVectors
	}

	ranked, stats, err := p.rank(ctx, col.Candidates.Works(), queryVectors, opts.TopK)
	if err != nil {
		return res, err
	}
	res.Skipped = stats.Skipped
	res.Ranked = ranked

	p.logger.Info("run complete",
		zap.Int("rounds", len(rounds)),
		zap.Int("failed_rounds", len(res.RoundErrors)),
		zap.Int("candidates", res.Candidates),
		zap.Int("skipped", res.Skipped),
		zap.Int("ranked", len(res.Ranked)),
	)
	return res, nil
}

// Extract returns the phrase list of every non-empty abstract, in order.
func (p *Pipeline) Extract(ctx context.Context, abstracts []string, maxTerms int) ([]phrase.Result, error) {
	var clean []string
	for _, a := range abstracts {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	return p.extract(ctx, clean, maxTerms)
}

func (p *Pipeline) extract(ctx context.Context, abstracts []string, maxTerms int) ([]phrase.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.extract")
	defer span.End()

	out := make([]phrase.Result, len(abstracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, a := range abstracts {
		g.Go(func() error {
			out[i] = p.extractor.Extract(gctx, a, maxTerms)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, r := range out {
		p.logger.Debug("phrases",
			zap.Int("abstract", i),
			zap.String("source", string(r.Source)),
			zap.Strings("phrases", r.Phrases),
		)
	}
	return out, nil
}

func (p *Pipeline) collect(ctx context.Context, rounds []retrieve.Round, perPage int, f retrieve.Filter) (retrieve.Collection, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.collect")
	defer span.End()
	span.SetAttributes(attribute.Int("rounds", len(rounds)))

	col, err := p.collector.Collect(ctx, rounds, perPage, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return col, err
	}
	span.SetAttributes(attribute.Int("candidates", col.Candidates.Len()))
	return col, nil
}

// queryVectors builds one vector per abstract, or one from the keywords when
// there are no abstracts. With keywords, an abstract's query text is the
// abstract followed by the keywords; without, it is the abstract's phrases,
// or the abstract itself when extraction found nothing. Failed embeddings
// are logged and skipped.
func (p *Pipeline) queryVectors(ctx context.Context, abstracts, keywords []string, extractions []phrase.Result, centroid bool) [][]float32 {
	if centroid && len(abstracts) > 0 {
		v, err := p.builder.QueryCentroid(ctx, abstracts, keywords)
		if err != nil {
			p.queryFailure("centroid", err)
			return nil
		}
		return [][]float32{v}
	}

	var texts []string
	switch {
	case len(abstracts) > 0:
		for i, a := range abstracts {
			texts = append(texts, QueryText(a, keywords, extractions[i].Phrases))
		}
	case len(keywords) > 0:
		texts = append(texts, strings.Join(keywords, " "))
	}

	var vecs [][]float32
	for i, text := range texts {
		v, err := p.builder.EmbedText(ctx, text)
		if err != nil {
			p.queryFailure(fmt.Sprintf("query %d", i), err)
			continue
		}
		vecs = append(vecs, v)
	}
	return vecs
}

// QueryText is the text embedded as the query vector of one abstract.
func QueryText(abstract string, keywords, phrases []string) string {
	if len(keywords) > 0 {
		return abstract + " " + strings.Join(keywords, " ")
	}
	if len(phrases) > 0 {
		return strings.Join(phrases, " ")
	}
	return abstract
}

func (p *Pipeline) queryFailure(which string, err error) {
	p.metrics.IncEmbeddingFailure(metrics.KindQuery)
	p.logger.Warn("skipping query vector", zap.String("query", which), zap.Error(err))
}

func (p *Pipeline) rank(ctx context.Context, works []types.Work, queryVectors [][]float32, topK int) ([]types.ScoredWork, rerank.Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.rerank")
	defer span.End()

	ranked, stats, err := p.reranker.Rerank(ctx, works, queryVectors, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, stats, err
	}
	span.SetAttributes(
		attribute.Int("scored", stats.Scored),
		attribute.Int("skipped", stats.Skipped),
	)
	return ranked, stats, nil
}

func phraseLists(extractions []phrase.Result) [][]string {
	lists := make([][]string, len(extractions))
	for i, e := range extractions {
		lists[i] = e.Phrases
	}
	return lists
}
