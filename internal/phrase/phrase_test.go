// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package phrase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/pkg/types"
)

const sampleAbstract = "Quantum error correction codes protect quantum information. " +
	"Error correction is vital for fault tolerance."

// stubModel returns a fixed response or error and records the prompt.
type stubModel struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (s *stubModel) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.response, s.err
}

// slowModel blocks until its context is done.
type slowModel struct{}

func (slowModel) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExtract_LLM(t *testing.T) {
	m := &stubModel{response: "quantum error correction; fault tolerance; stabilizer codes; surface codes"}
	e := New(m, WithLogger(zaptest.NewLogger(t)))

	got := e.Extract(context.Background(), sampleAbstract, 3)
	assert.Equal(t, SourceLLM, got.Source)
	assert.Equal(t, []string{"quantum error correction", "fault tolerance", "stabilizer codes"}, got.Phrases)
	assert.Contains(t, m.prompt, sampleAbstract)
	assert.Contains(t, m.prompt, "Extract 3 core technical keywords")
}

func TestExtract_FallsBack(t *testing.T) {
	heuristic := []string{"quantum error correction"}

	tests := []struct {
		name  string
		model Model
	}{
		{"nil model", nil},
		{"empty response", &stubModel{response: ""}},
		{"whitespace response", &stubModel{response: "  \n "}},
		{"transport error", &stubModel{err: errors.New("connection refused")}},
		{"multi-line", &stubModel{response: "quantum codes\nfault tolerance"}},
		{"code fence", &stubModel{response: "```\nquantum codes; fault tolerance\n```"}},
		{"numbered", &stubModel{response: "1. quantum codes; fault tolerance"}},
		{"bulleted", &stubModel{response: "- quantum codes; fault tolerance"}},
		{"prose", &stubModel{response: "The main topic of this abstract is clearly quantum error correction"}},
		{"label", &stubModel{response: "Keywords: quantum codes; fault tolerance"}},
		{"only delimiters", &stubModel{response: ";;;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.model, WithLogger(zaptest.NewLogger(t))).Extract(context.Background(), sampleAbstract, 3)
			assert.Equal(t, SourceHeuristic, got.Source)
			assert.Equal(t, heuristic, got.Phrases)
		})
	}
}

func TestExtract_EmptyAbstractSkipsModel(t *testing.T) {
	m := &stubModel{response: "anything"}
	got := New(m).Extract(context.Background(), "   ", 3)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, SourceHeuristic, got.Source)
	assert.Empty(t, got.Phrases)
}

func TestExtract_DefaultMaxTerms(t *testing.T) {
	m := &stubModel{response: "a1; b2; c3; d4"}
	got := New(m).Extract(context.Background(), sampleAbstract, 0)
	assert.Len(t, got.Phrases, DefaultMaxTerms)
}

func TestExtract_Timeout(t *testing.T) {
	e := New(slowModel{}, WithTimeout(10*time.Millisecond))

	start := time.Now()
	got := e.Extract(context.Background(), sampleAbstract, 3)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, SourceHeuristic, got.Source)
}

func TestExtract_Metrics(t *testing.T) {
	m := metrics.New()
	ok := New(&stubModel{response: "graph networks"}, WithMetrics(m))
	bad := New(&stubModel{response: ""}, WithMetrics(m))

	ok.Extract(context.Background(), sampleAbstract, 3)
	bad.Extract(context.Background(), sampleAbstract, 3)
	bad.Extract(context.Background(), sampleAbstract, 3)

	count := testutil.CollectAndCount(m.Collectors()[0])
	assert.Equal(t, 2, count, "one series per source")
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		abstract string
		maxTerms int
		want     string
	}{
		{"frequency then position", sampleAbstract, 3, "quantum error correction"},
		{"fewer terms", sampleAbstract, 1, "quantum"},
		{"stopwords and short tokens dropped", "We show the system based methods used for DNA folding", 3, "folding"},
		{"tie keeps first occurrence", "zebra apple mango", 2, "zebra apple"},
		{"nothing survives", "a an the of it", 3, "a an the of it"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Heuristic(tt.abstract, tt.maxTerms))
		})
	}
}

func TestHeuristic_TruncatesRawFallback(t *testing.T) {
	abstract := strings.Repeat("ab ", 100)
	got := Heuristic(abstract, 3)
	assert.Equal(t, abstract[:200], got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		maxTerms int
		want     []string
	}{
		{"semicolons", "a b; c d ; e", 3, []string{"a b", "c d", "e"}},
		{"truncated", "a; b; c; d", 2, []string{"a", "b"}},
		{"empties dropped", "a;; ;b", 3, []string{"a", "b"}},
		{"single phrase", "quantum error correction", 3, []string{"quantum error correction"}},
		{"no phrases", "", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw, tt.maxTerms))
		})
	}
}

func TestValidateResponse(t *testing.T) {
	got, err := validateResponse("  graph neural networks; message passing  \n", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"graph neural networks", "message passing"}, got)

	_, err = validateResponse("", 3)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	_, err = validateResponse("a\nb", 3)
	assert.ErrorIs(t, err, ErrMultiLine)
	_, err = validateResponse("```a; b```", 3)
	assert.ErrorIs(t, err, ErrCodeFence)
	_, err = validateResponse("* a; b", 3)
	assert.ErrorIs(t, err, ErrListMarker)
	_, err = validateResponse(" ; ", 3)
	assert.ErrorIs(t, err, ErrNoPhrases)
	_, err = validateResponse("Keywords: graph networks; molecules", 3)
	assert.ErrorContains(t, err, "looks like a label")
	_, err = validateResponse("graph networks; one two three four five six seven", 3)
	assert.ErrorContains(t, err, "has 7 words")

	// Leading digits that are part of a term are not list markers.
	got, err = validateResponse("3D printing; 5G networks", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"3D printing", "5G networks"}, got)
}

func TestRenderPrompt(t *testing.T) {
	p, err := RenderPrompt("Some abstract.", 2)
	require.NoError(t, err)
	assert.Contains(t, p, "Extract 2 core technical keywords")
	assert.Contains(t, p, "separated by semicolons `;`")
	assert.True(t, strings.HasSuffix(p, "Abstract:\nSome abstract."))
}

func TestNewModel_None(t *testing.T) {
	m, err := NewModel(context.Background(), types.LLMConfig{Provider: types.LLMNone})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewModel_Errors(t *testing.T) {
	_, err := NewModel(context.Background(), types.LLMConfig{Provider: "grok"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	_, err = NewModel(context.Background(), types.LLMConfig{Provider: types.LLMGoogleAI})
	assert.ErrorContains(t, err, "requires an API key")

	_, err = NewModel(context.Background(), types.LLMConfig{Provider: types.LLMAnthropic})
	assert.ErrorContains(t, err, "requires an API key")
}
