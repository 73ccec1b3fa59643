// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package phrase turns one abstract into a short list of technical search
// phrases. An LLM is asked first; any failure or malformed answer falls back
// to a deterministic frequency heuristic, so extraction never fails.
package phrase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/metrics"
)

// DefaultMaxTerms is the phrase budget per abstract.
const DefaultMaxTerms = 3

// Source records which path produced a phrase list.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

// Model is a single-turn text completion service.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is the phrase list for one abstract.
type Result struct {
	Phrases []string `json:"phrases" yaml:"phrases"`
	Source  Source   `json:"source" yaml:"source"`
}

// Extractor extracts phrases with a Model and falls back to Heuristic.
// A nil model always uses the heuristic.
type Extractor struct {
	model   Model
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout bounds each model call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l.Named("phrase")
		}
	}
}

// WithMetrics records extractions by source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// New returns an Extractor backed by model, which may be nil.
func New(model Model, opts ...Option) *Extractor {
	e := &Extractor{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns at most maxTerms phrases for abstract. It never returns an
// error; an empty abstract yields an empty heuristic result.
func (e *Extractor) Extract(ctx context.Context, abstract string, maxTerms int) Result {
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}

	if strings.TrimSpace(abstract) != "" && e.model != nil {
		if phrases, ok := e.fromModel(ctx, abstract, maxTerms); ok {
			e.metrics.IncPhraseExtraction(string(SourceLLM))
			return Result{Phrases: phrases, Source: SourceLLM}
		}
	}

	e.metrics.IncPhraseExtraction(string(SourceHeuristic))
	return Result{
		Phrases: Parse(Heuristic(abstract, maxTerms), maxTerms),
		Source:  SourceHeuristic,
	}
}

func (e *Extractor) fromModel(ctx context.Context, abstract string, maxTerms int) ([]string, bool) {
	prompt, err := RenderPrompt(abstract, maxTerms)
	if err != nil {
		e.logger.Warn("rendering prompt, using heuristic", zap.Error(err))
		return nil, false
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.model.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("model call failed, using heuristic", zap.Error(err))
		return nil, false
	}

	phrases, err := validateResponse(raw, maxTerms)
	if err != nil {
		e.logger.Warn("rejected model response, using heuristic",
			zap.Error(err),
			zap.String("response", truncateRunes(raw, 200)),
		)
		return nil, false
	}

	e.logger.Debug("extracted phrases", zap.Strings("phrases", phrases))
	return phrases, true
}
