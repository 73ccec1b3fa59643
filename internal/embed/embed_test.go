// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/proxima/internal/embed/embedtest"
	"github.com/pdiddy/proxima/pkg/types"
)

const eps = 1e-6

func TestWeights(t *testing.T) {
	tests := []struct {
		name                 string
		hasTopic, hasConcept bool
		want                 ChannelWeights
	}{
		{"primary only", false, false, ChannelWeights{Main: 1}},
		{"primary and topic", true, false, ChannelWeights{Main: 0.7 / 0.9, Topic: 0.2 / 0.9}},
		{"primary and concept", false, true, ChannelWeights{Main: 0.7 / 0.8, Concept: 0.1 / 0.8}},
		{"all channels", true, true, ChannelWeights{Main: 0.7, Topic: 0.2, Concept: 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Weights(tt.hasTopic, tt.hasConcept)
			assert.InDelta(t, tt.want.Main, got.Main, eps)
			assert.InDelta(t, tt.want.Topic, got.Topic, eps)
			assert.InDelta(t, tt.want.Concept, got.Concept, eps)
			assert.InDelta(t, 1.0, got.Main+got.Topic+got.Concept, eps)
		})
	}

	w := Weights(true, false)
	assert.InDelta(t, 0.778, w.Main, 1e-3)
	assert.InDelta(t, 0.222, w.Topic, 1e-3)
}

func TestCombine(t *testing.T) {
	main := []float32{1, 0}
	topic := []float32{0, 1}

	got := Combine(main, topic, nil)
	assert.InDelta(t, 1.0, Norm(got), eps)
	// Direction follows the 0.7:0.2 weighting.
	assert.InDelta(t, 0.7/0.2, float64(got[0]/got[1]), 1e-4)

	assert.Equal(t, main, Combine(main, nil, nil))
}

func TestCombine_ZeroNormReturnsMain(t *testing.T) {
	main := []float32{0, 0}
	got := Combine(main, []float32{0, 0}, []float32{0, 0})
	require.Len(t, got, 2)
	got[0] = 9
	assert.Equal(t, float32(9), main[0], "main returned unchanged, not a copy")
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, 1.0, Norm(Normalize([]float32{3, 4})), eps)
	assert.Equal(t, []float32{0, 0, 0}, Normalize([]float32{0, 0, 0}))
	assert.Empty(t, Normalize(nil))
}

func TestMeanAndDot(t *testing.T) {
	assert.Equal(t, []float32{2, 3}, Mean([][]float32{{1, 2}, {3, 4}}))
	assert.Nil(t, Mean(nil))
	assert.InDelta(t, 11.0, Dot([]float32{1, 2}, []float32{3, 4}), eps)
}

func TestHandle_InitializesOnce(t *testing.T) {
	var inits int32
	h := NewHandle(func(context.Context) (Model, error) {
		atomic.AddInt32(&inits, 1)
		return &embedtest.HashModel{}, nil
	})

	var wg sync.WaitGroup
	models := make([]Model, 16)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := h.Model(context.Background())
			assert.NoError(t, err)
			models[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inits))
	for _, m := range models {
		assert.Same(t, models[0], m)
	}
}

func TestHandle_StickyError(t *testing.T) {
	var inits int32
	boom := errors.New("model download failed")
	h := NewHandle(func(context.Context) (Model, error) {
		atomic.AddInt32(&inits, 1)
		return nil, boom
	})

	_, err := h.Model(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = h.Model(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inits))
}

func TestHandle_NilFactoryAndModel(t *testing.T) {
	_, err := NewHandle(nil).Model(context.Background())
	assert.Error(t, err)

	_, err = NewHandle(func(context.Context) (Model, error) { return nil, nil }).Model(context.Background())
	assert.Error(t, err)
}

func TestEmbed_UnitNorm(t *testing.T) {
	b := NewBuilder(Static(&embedtest.HashModel{Dim: 32}), WithLogger(zaptest.NewLogger(t)))

	tests := []struct {
		name string
		ch   Channels
	}{
		{"primary only", Channels{Primary: "Sparse attention for long documents"}},
		{"with topic", Channels{Primary: "Sparse attention", Topic: "Transformers; Efficient inference"}},
		{"all channels", Channels{Primary: "Sparse attention", Topic: "Transformers", Concept: "Machine learning; Attention"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := b.Embed(context.Background(), tt.ch)
			require.NoError(t, err)
			assert.Len(t, v, 32)
			assert.InDelta(t, 1.0, Norm(v), 1e-5)
		})
	}
}

func TestEmbed_EmptyPrimary(t *testing.T) {
	m := &embedtest.HashModel{}
	b := NewBuilder(Static(m))

	for _, primary := range []string{"", "   ", "the of and", "[12] (Smith 2020)"} {
		_, err := b.Embed(context.Background(), Channels{Primary: primary, Topic: "graphs"})
		assert.ErrorIs(t, err, ErrEmptyPrimary, "primary %q", primary)
	}
	assert.Equal(t, 0, m.Calls(), "model not called for empty primary")
}

func TestEmbed_ZeroPrimary(t *testing.T) {
	b := NewBuilder(Static(&embedtest.MapModel{Vectors: map[string][]float32{
		"alpha": {0, 0, 0},
		"beta":  {0, 1, 0},
	}}))

	v, err := b.Embed(context.Background(), Channels{Primary: "alpha", Topic: "beta"})
	assert.ErrorIs(t, err, ErrZeroPrimary)
	assert.Nil(t, v)

	_, err = b.EmbedText(context.Background(), "alpha")
	assert.ErrorIs(t, err, ErrZeroPrimary)
}

func TestEmbed_SingleBatchOfNormalizedChannels(t *testing.T) {
	m := &embedtest.HashModel{}
	b := NewBuilder(Static(m))

	_, err := b.Embed(context.Background(), Channels{
		Primary: "Graph Neural Networks",
		Topic:   "the of", // normalizes to nothing, channel dropped
		Concept: "Deep learning",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Calls())
	assert.Equal(t, []string{"graph neural networks", "deep learning"}, m.Texts())
}

func TestEmbed_ChannelWeighting(t *testing.T) {
	m := &embedtest.MapModel{Vectors: map[string][]float32{
		"alpha": {2, 0, 0}, // normalized to unit before weighting
		"beta":  {0, 5, 0},
		"gamma": {0, 0, 1},
	}}
	b := NewBuilder(Static(m))

	v, err := b.Embed(context.Background(), Channels{Primary: "alpha", Topic: "beta", Concept: "gamma"})
	require.NoError(t, err)

	n := Norm([]float32{0.7, 0.2, 0.1})
	assert.InDelta(t, 0.7/n, float64(v[0]), 1e-5)
	assert.InDelta(t, 0.2/n, float64(v[1]), 1e-5)
	assert.InDelta(t, 0.1/n, float64(v[2]), 1e-5)
}

func TestEmbed_Errors(t *testing.T) {
	t.Run("model failure", func(t *testing.T) {
		b := NewBuilder(Static(&embedtest.MapModel{Fail: map[string]bool{"alpha": true}}))
		_, err := b.Embed(context.Background(), Channels{Primary: "alpha"})
		assert.ErrorContains(t, err, "forced failure")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		b := NewBuilder(Static(&embedtest.MapModel{Vectors: map[string][]float32{
			"alpha": {1, 0},
			"beta":  {1, 0, 0},
		}}))
		_, err := b.Embed(context.Background(), Channels{Primary: "alpha", Topic: "beta"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("init failure", func(t *testing.T) {
		b := NewBuilder(NewHandle(func(context.Context) (Model, error) { return nil, errors.New("offline") }))
		_, err := b.Embed(context.Background(), Channels{Primary: "alpha"})
		assert.ErrorContains(t, err, "loading embedding model")
	})
}

func TestQueryCentroid(t *testing.T) {
	m := &embedtest.MapModel{Vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"gamma": {0, 0, 1},
	}}
	b := NewBuilder(Static(m))

	v, err := b.QueryCentroid(context.Background(), []string{"alpha", "beta", "  "}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(v), 1e-5)
	assert.InDelta(t, float64(v[0]), float64(v[1]), 1e-6)
	assert.InDelta(t, 0.0, float64(v[2]), 1e-6)

	v, err = b.QueryCentroid(context.Background(), []string{"alpha"}, []string{"gamma"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(v), 1e-5)
	assert.InDelta(t, 0.7/0.2, float64(v[0]/v[2]), 1e-4)

	_, err = b.QueryCentroid(context.Background(), []string{"the of"}, []string{"gamma"})
	assert.ErrorIs(t, err, ErrEmptyPrimary)
}

func TestQueryCentroid_ZeroMean(t *testing.T) {
	m := &embedtest.MapModel{Vectors: map[string][]float32{
		"alpha": {1, 0},
		"omega": {-1, 0},
	}}
	v, err := NewBuilder(Static(m)).QueryCentroid(context.Background(), []string{"alpha", "omega"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, v)
}

func TestLangchainFactory_RequiresModel(t *testing.T) {
	_, err := LangchainFactory(types.EmbeddingConfig{})(context.Background())
	assert.ErrorContains(t, err, "not configured")
}
