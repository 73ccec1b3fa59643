// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package phrase

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/proxima/pkg/types"
)

// LLM adapts a langchaingo model to Model.
type LLM struct {
	llm llms.Model
}

// NewLLM wraps an existing langchaingo model.
func NewLLM(m llms.Model) *LLM {
	return &LLM{llm: m}
}

// Complete sends prompt as a single human turn at temperature zero.
func (l *LLM) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l.llm, prompt, llms.WithTemperature(0))
}

// NewModel builds the configured provider. Provider "none" returns a nil
// Model, which makes the Extractor use the heuristic only.
func NewModel(ctx context.Context, cfg types.LLMConfig) (Model, error) {
	var (
		m   llms.Model
		err error
	)

	switch cfg.Provider {
	case types.LLMNone:
		return nil, nil
	case types.LLMGoogleAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("googleai provider requires an API key")
		}
		m, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case types.LLMOpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(tokenOrNone(cfg.APIKey))}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err = openai.New(opts...)
	case types.LLMAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		m, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", cfg.Provider, err)
	}
	return NewLLM(m), nil
}

// tokenOrNone returns key, or "none" for local OpenAI-compatible hosts that
// do not check authentication.
func tokenOrNone(key string) string {
	if key == "" {
		return "none"
	}
	return key
}
