// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/phrase"
	"github.com/pdiddy/proxima/internal/retrieve"
	"github.com/pdiddy/proxima/pkg/types"
)

// KeywordResult is the outcome of a flattened keyword search.
type KeywordResult struct {
	Extractions []phrase.Result      `json:"extractions" yaml:"extractions"`
	Tokens      []string             `json:"tokens" yaml:"tokens"`
	Round       retrieve.RoundReport `json:"round" yaml:"round"`
	Works       []types.Work         `json:"works" yaml:"works"`
}

// KeywordSearch flattens the phrases of every abstract and the keywords into
// one token list, removes case-insensitive duplicates, and runs a single
// relaxation round. Results are returned in service order without reranking.
func (p *Pipeline) KeywordSearch(ctx context.Context, in types.QueryInput, opts Options) (*KeywordResult, error) {
	if in.IsEmpty() {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.KeywordSearch")
	defer span.End()

	extractions, err := p.extract(ctx, in.CleanAbstracts(), opts.MaxTerms)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, e := range extractions {
		tokens = append(tokens, e.Phrases...)
	}
	tokens = retrieve.DedupeFold(append(tokens, in.KeywordTokens()...))

	res := &KeywordResult{Extractions: extractions, Tokens: tokens}
	if len(tokens) == 0 {
		return res, nil
	}

	rounds := []retrieve.Round{{Kind: retrieve.KindFlattened, Tokens: tokens}}
	col, err := p.collect(ctx, rounds, opts.PerGroup, retrieve.Filter{From: in.From, To: in.To, Concepts: opts.Concepts})
	if len(col.Rounds) > 0 {
		res.Round = col.Rounds[0]
	}
	if err != nil {
		return res, err
	}
	res.Works = col.Candidates.Works()

	p.logger.Info("keyword search complete",
		zap.String("query", res.Round.Query),
		zap.Int("steps", res.Round.Steps),
		zap.Int("results", len(res.Works)),
	)
	return res, nil
}
