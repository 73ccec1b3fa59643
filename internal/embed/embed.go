// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed builds unit-norm vectors for queries and candidate works by
// encoding up to three text channels (primary, topic, concept) and fusing
// them with presence-renormalized weights.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/textnorm"
)

// Sentinel errors.
var (
	// ErrEmptyPrimary means the primary text carries no signal after normalization.
	ErrEmptyPrimary = errors.New("primary text is empty after normalization")

	// ErrZeroPrimary means the model returned an all-zero primary vector.
	ErrZeroPrimary = errors.New("primary embedding is the zero vector")

	// ErrDimensionMismatch means the model returned vectors of differing lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Channels is the text of one item, split by semantic role. Topic and
// Concept are optional.
type Channels struct {
	Primary string
	Topic   string
	Concept string
}

// Builder turns Channels into fused vectors.
type Builder struct {
	handle *Handle
	logger *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l.Named("embed")
		}
	}
}

// NewBuilder returns a Builder drawing its model from h.
func NewBuilder(h *Handle, opts ...Option) *Builder {
	b := &Builder{handle: h, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Embed normalizes and encodes every non-empty channel in one batch, unit
// normalizes each channel vector, and returns their weighted combination.
// The result is always unit length; a zero primary vector is ErrZeroPrimary.
func (b *Builder) Embed(ctx context.Context, ch Channels) ([]float32, error) {
	primary := textnorm.Normalize(ch.Primary)
	if primary == "" {
		return nil, ErrEmptyPrimary
	}

	texts := []string{primary}
	topicIdx, conceptIdx := -1, -1
	if t := textnorm.Normalize(ch.Topic); t != "" {
		topicIdx = len(texts)
		texts = append(texts, t)
	}
	if c := textnorm.Normalize(ch.Concept); c != "" {
		conceptIdx = len(texts)
		texts = append(texts, c)
	}

	vecs, err := b.encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	if Norm(vecs[0]) == 0 {
		return nil, ErrZeroPrimary
	}

	var topic, concept []float32
	if topicIdx >= 0 {
		topic = vecs[topicIdx]
	}
	if conceptIdx >= 0 {
		concept = vecs[conceptIdx]
	}
	return Combine(vecs[0], topic, concept), nil
}

// EmbedText embeds text as a primary-only item.
func (b *Builder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return b.Embed(ctx, Channels{Primary: text})
}

// QueryCentroid embeds each abstract as a primary-only item, averages them,
// and L2-normalizes the mean (a zero mean is returned as-is). Non-empty
// shared keywords are comma-joined into a topic channel and fused with the
// centroid by the usual weighting; queries have no concept channel.
// Abstracts that normalize to nothing are skipped; if none remain the
// result is ErrEmptyPrimary.
func (b *Builder) QueryCentroid(ctx context.Context, abstracts, sharedKeywords []string) ([]float32, error) {
	var texts []string
	for _, a := range abstracts {
		if n := textnorm.Normalize(a); n != "" {
			texts = append(texts, n)
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyPrimary
	}

	topicIdx := -1
	if kw := textnorm.Normalize(strings.Join(sharedKeywords, ", ")); kw != "" {
		topicIdx = len(texts)
		texts = append(texts, kw)
	}

	vecs, err := b.encode(ctx, texts)
	if err != nil {
		return nil, err
	}

	abstractVecs := vecs
	var topic []float32
	if topicIdx >= 0 {
		abstractVecs = vecs[:topicIdx]
		topic = vecs[topicIdx]
	}

	centroid := Mean(abstractVecs)
	if Norm(centroid) > 0 {
		centroid = Normalize(centroid)
	}
	if topic == nil {
		return centroid, nil
	}
	return Combine(centroid, topic, nil), nil
}

// encode runs the model over texts and unit-normalizes every vector.
func (b *Builder) encode(ctx context.Context, texts []string) ([][]float32, error) {
	model, err := b.handle.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w", err)
	}

	raw, err := model.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d texts", len(raw), len(texts))
	}

	dim := len(raw[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedding model returned an empty vector")
	}
	out := make([][]float32, len(raw))
	for i, v := range raw {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: channel %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		out[i] = Normalize(v)
	}

	b.logger.Debug("encoded", zap.Int("texts", len(texts)), zap.Int("dim", dim))
	return out, nil
}
