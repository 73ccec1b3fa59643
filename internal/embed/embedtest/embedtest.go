// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedtest provides deterministic embedding models for tests.
package embedtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// HashModel derives a fixed vector from the FNV hash of each text, so equal
// texts always embed identically. Dim defaults to 64.
type HashModel struct {
	Dim int

	mu    sync.Mutex
	calls int
	texts []string
}

// EmbedTexts implements embed.Model.
func (m *HashModel) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.texts = append(m.texts, texts...)
	m.mu.Unlock()

	dim := m.Dim
	if dim <= 0 {
		dim = 64
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashVector(t, dim)
	}
	return out, nil
}

// Calls returns how many batches were embedded.
func (m *HashModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Texts returns every text seen, in call order.
func (m *HashModel) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// HashVector returns a deterministic, not normalized, vector for text.
func HashVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, dim)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000 - 0.5
	}
	return v
}

// MapModel returns the vector registered for each text. Texts are looked up
// after normalization, so keys must be normalized text. Unknown texts fail
// the whole batch unless Fallback is set.
type MapModel struct {
	Vectors  map[string][]float32
	Fallback []float32

	// Fail lists texts that make the batch return an error.
	Fail map[string]bool
}

// EmbedTexts implements embed.Model.
func (m *MapModel) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.Fail[t] {
			return nil, fmt.Errorf("embedding %q: forced failure", t)
		}
		v, ok := m.Vectors[t]
		if !ok {
			if m.Fallback == nil {
				return nil, fmt.Errorf("no vector for %q", t)
			}
			v = m.Fallback
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}
