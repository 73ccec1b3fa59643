// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"errors"
	"sync"
)

// Model encodes texts into dense vectors, one per input, in input order.
type Model interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Factory constructs a Model. It is called at most once per Handle.
type Factory func(ctx context.Context) (Model, error)

// Handle is a lazily initialized, process-wide model reference. The first
// call to Model runs the factory; every later call returns the same model
// or the same initialization error. A Handle is safe for concurrent use.
type Handle struct {
	once    sync.Once
	factory Factory
	model   Model
	err     error
}

// NewHandle returns a Handle that builds its model with f on first use.
func NewHandle(f Factory) *Handle {
	return &Handle{factory: f}
}

// Static returns a Handle around an already constructed model.
func Static(m Model) *Handle {
	return NewHandle(func(context.Context) (Model, error) { return m, nil })
}

// Model returns the model, initializing it on the first call.
func (h *Handle) Model(ctx context.Context) (Model, error) {
	h.once.Do(func() {
		if h.factory == nil {
			h.err = errors.New("embedding model factory not set")
			return
		}
		h.model, h.err = h.factory(ctx)
		if h.err == nil && h.model == nil {
			h.err = errors.New("embedding model factory returned nil")
		}
	})
	return h.model, h.err
}
