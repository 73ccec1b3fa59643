// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/embed"
	"github.com/pdiddy/proxima/internal/openalex"
	"github.com/pdiddy/proxima/internal/phrase"
	"github.com/pdiddy/proxima/internal/pipeline"
	"github.com/pdiddy/proxima/internal/rerank"
	"github.com/pdiddy/proxima/internal/retrieve"
)

// newExtractor builds the phrase extractor. A model that cannot be
// configured is logged and replaced by the heuristic.
func newExtractor(ctx context.Context) *phrase.Extractor {
	model, err := phrase.NewModel(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("phrase model unavailable, using heuristic extraction",
			zap.String("provider", string(cfg.LLM.Provider)), zap.Error(err))
		model = nil
	}
	return phrase.New(model,
		phrase.WithTimeout(cfg.LLM.Timeout),
		phrase.WithLogger(logger),
		phrase.WithMetrics(met),
	)
}

// newPipeline wires every stage from the loaded configuration.
func newPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	policy, err := retrieve.NewDropPolicy(cfg.Retrieval.DropPolicy, cfg.Retrieval.Seed)
	if err != nil {
		return nil, fmt.Errorf("configuring retrieval: %w", err)
	}

	client := openalex.NewFromConfig(cfg.OpenAlex, logger)
	relaxer := retrieve.NewRelaxer(client,
		retrieve.WithDropPolicy(policy),
		retrieve.WithRelaxerLogger(logger),
		retrieve.WithRelaxerMetrics(met),
	)
	collector := retrieve.NewCollector(relaxer,
		retrieve.WithMinTerms(cfg.Retrieval.MinTerms),
		retrieve.WithConcurrency(cfg.Retrieval.Concurrency),
		retrieve.WithCollectorLogger(logger),
		retrieve.WithCollectorMetrics(met),
	)

	builder := embed.NewBuilder(embed.NewHandle(embed.LangchainFactory(cfg.Embedding)), embed.WithLogger(logger))
	reranker := rerank.New(builder,
		rerank.WithWorkers(cfg.Embedding.Workers),
		rerank.WithLogger(logger),
		rerank.WithMetrics(met),
	)

	return pipeline.New(newExtractor(ctx), collector, builder, reranker,
		pipeline.WithConcurrency(cfg.Rank.Concurrency),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(met),
	), nil
}
