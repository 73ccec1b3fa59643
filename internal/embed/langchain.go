// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/proxima/pkg/types"
)

// LangchainModel embeds texts through an OpenAI-compatible endpoint, such as
// a local Ollama server, using langchaingo.
type LangchainModel struct {
	embedder embeddings.Embedder
}

// NewLangchainModel creates the client and embedder described by cfg.
func NewLangchainModel(cfg types.EmbeddingConfig) (*LangchainModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model not configured")
	}

	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible hosts do not check the token.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	eopts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		eopts = append(eopts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, eopts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &LangchainModel{embedder: embedder}, nil
}

// EmbedTexts implements Model.
func (m *LangchainModel) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return m.embedder.EmbedDocuments(ctx, texts)
}

// LangchainFactory returns a Factory that builds a LangchainModel from cfg.
func LangchainFactory(cfg types.EmbeddingConfig) Factory {
	return func(context.Context) (Model, error) {
		return NewLangchainModel(cfg)
	}
}
