// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/proxima/internal/embed"
	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/internal/phrase"
	"github.com/pdiddy/proxima/internal/rerank"
	"github.com/pdiddy/proxima/internal/retrieve"
	"github.com/pdiddy/proxima/pkg/types"
)

const (
	gnnAbstract     = "We study message passing in graph neural networks for molecule property prediction."
	cardiacAbstract = "We segment echocardiography sequences to support cardiac imaging diagnosis."
)

var (
	gnnWork     = types.Work{ID: "W-G", Title: "Graph neural networks at scale", Abstract: "Deep graph models."}
	cardiacWork = types.Work{ID: "W-C", Title: "Cardiac MRI segmentation", Abstract: "Deep cardiac models."}
	bothWork    = types.Work{ID: "W-B", Title: "Graph learning for cardiac imaging", Abstract: "Graph models of cardiac anatomy."}
)

// topicModel embeds a text on three axes: graph, cardiac, and a small bias.
type topicModel struct {
	fail func(text string) bool
}

func (m topicModel) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.fail != nil && m.fail(t) {
			return nil, errors.New("embedding backend down")
		}
		v := []float32{0, 0, 0.1}
		if strings.Contains(t, "graph") {
			v[0] = 1
		}
		if strings.Contains(t, "cardiac") {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

// phraseModel answers with phrases keyed on a marker in the abstract.
type phraseModel struct{}

func (phraseModel) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "message passing"):
		return "graph neural networks", nil
	case strings.Contains(prompt, "echocardiography"):
		return "cardiac imaging", nil
	}
	return "", errors.New("unexpected prompt")
}

// topicSearcher returns every work whose title shares a topic word with the query.
type topicSearcher struct {
	mu      sync.Mutex
	queries []string
	fail    bool
}

func (s *topicSearcher) Search(_ context.Context, req types.SearchRequest) ([]types.Work, error) {
	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	s.mu.Unlock()
	if s.fail {
		return nil, errors.New("connection refused")
	}

	q := strings.ToLower(req.Query)
	var out []types.Work
	for _, w := range []types.Work{gnnWork, cardiacWork, bothWork} {
		title := strings.ToLower(w.Title)
		if (strings.Contains(q, "graph") && strings.Contains(title, "graph")) ||
			(strings.Contains(q, "cardiac") && strings.Contains(title, "cardiac")) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *topicSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type fixture struct {
	searcher *topicSearcher
	metrics  *metrics.Metrics
	pipeline *Pipeline
}

func newFixture(t *testing.T, model embed.Model, pm phrase.Model) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := metrics.New()
	s := &topicSearcher{}

	ex := phrase.New(pm, phrase.WithLogger(logger), phrase.WithMetrics(m))
	relaxer := retrieve.NewRelaxer(s, retrieve.WithDropPolicy(retrieve.ReverseDrop{}), retrieve.WithRelaxerLogger(logger))
	col := retrieve.NewCollector(relaxer, retrieve.WithCollectorLogger(logger), retrieve.WithConcurrency(2))
	b := embed.NewBuilder(embed.Static(model), embed.WithLogger(logger))
	rr := rerank.New(b, rerank.WithLogger(logger))

	return &fixture{
		searcher: s,
		metrics:  m,
		pipeline: New(ex, col, b, rr, WithLogger(logger), WithMetrics(m), WithConcurrency(2)),
	}
}

func TestRun_TwoUnrelatedAbstracts(t *testing.T) {
	f := newFixture(t, topicModel{}, phraseModel{})

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{
		Abstracts: []string{gnnAbstract, cardiacAbstract},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, res.Extractions, 2)
	assert.Equal(t, phrase.Result{Phrases: []string{"graph neural networks"}, Source: phrase.SourceLLM}, res.Extractions[0])
	assert.Equal(t, phrase.Result{Phrases: []string{"cardiac imaging"}, Source: phrase.SourceLLM}, res.Extractions[1])

	require.Len(t, res.Rounds, 1)
	assert.Equal(t, []string{"graph neural networks", "cardiac imaging"}, res.Rounds[0].Round.Tokens)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 2, res.QueryVectors)
	assert.False(t, res.Degraded())

	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "W-B", res.Ranked[0].Work.ID, "a work covering both topics ranks first")
	for _, sw := range res.Ranked[1:] {
		assert.Greater(t, res.Ranked[0].TotalScore, sw.TotalScore)
		assert.Len(t, sw.Contributions, 2)
	}
	assert.InDelta(t, 1.0, res.Ranked[0].Contributions[0]+res.Ranked[0].Contributions[1], 1e-9)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Collectors()[0]), "two llm extractions")
}

func TestRun_EmptyQuery(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)
	_, err := f.pipeline.Run(context.Background(), types.QueryInput{Abstracts: []string{"  "}}, Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRun_NoCandidatesIsEmptySuccess(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{Keywords: []string{"origami; tessellation"}}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.Zero(t, res.Candidates)
	require.Len(t, res.Rounds, 1)
	assert.Equal(t, retrieve.KindKeywords, res.Rounds[0].Round.Kind)
	assert.Equal(t, 1, res.Rounds[0].Steps, "relaxed down to one keyword")
}

func TestRun_BoundsOnlyHasNoRounds(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)
	in := types.QueryInput{}
	in.YearBounds(2020, 2021)

	res, err := f.pipeline.Run(context.Background(), in, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Rounds)
	assert.Empty(t, f.searcher.Queries())
}

func TestRun_AllRoundsFail(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)
	f.searcher.fail = true

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{Keywords: []string{"graph"}}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieve.ErrRetrievalFailed)
	require.NotNil(t, res)
	assert.True(t, res.Degraded())
}

func TestRun_NoQueryVectors(t *testing.T) {
	model := topicModel{fail: func(string) bool { return true }}
	f := newFixture(t, model, nil)

	_, err := f.pipeline.Run(context.Background(), types.QueryInput{Keywords: []string{"graph"}}, Options{})
	assert.ErrorIs(t, err, ErrNoQueryVectors)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.Collectors()[4]))
}

func TestRun_KeywordsOnly(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{Keywords: []string{"cardiac"}}, Options{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.QueryVectors)
	assert.Equal(t, 2, res.Candidates)
	require.Len(t, res.Ranked, 1)
	assert.Equal(t, []string{"cardiac"}, f.searcher.Queries())
}

func TestRun_KeywordsJoinAbstractQueries(t *testing.T) {
	f := newFixture(t, topicModel{}, phraseModel{})

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{
		Abstracts: []string{gnnAbstract},
		Keywords:  []string{"cardiac"},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rounds, 2)
	assert.Equal(t, retrieve.KindPosition, res.Rounds[0].Round.Kind)
	assert.Equal(t, retrieve.KindKeywords, res.Rounds[1].Round.Kind)
	assert.Equal(t, 1, res.QueryVectors)
	assert.Equal(t, "W-B", res.Ranked[0].Work.ID)
}

func TestRun_Centroid(t *testing.T) {
	f := newFixture(t, topicModel{}, phraseModel{})

	res, err := f.pipeline.Run(context.Background(), types.QueryInput{
		Abstracts: []string{gnnAbstract, cardiacAbstract},
	}, Options{Centroid: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.QueryVectors)
	for _, sw := range res.Ranked {
		assert.Equal(t, []float64{1}, sw.Contributions, sw.Work.ID)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, topicModel{}, phraseModel{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, types.QueryInput{Abstracts: []string{gnnAbstract}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryText(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		phrases  []string
		want     string
	}{
		{"keywords appended to abstract", []string{"a", "b"}, []string{"p"}, "abstract text a b"},
		{"phrases without keywords", nil, []string{"p one", "p two"}, "p one p two"},
		{"raw abstract fallback", nil, nil, "abstract text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryText("abstract text", tt.keywords, tt.phrases))
		})
	}
}

func TestKeywordSearch_FlattensAndDedupes(t *testing.T) {
	f := newFixture(t, topicModel{}, phraseModel{})

	res, err := f.pipeline.KeywordSearch(context.Background(), types.QueryInput{
		Abstracts: []string{gnnAbstract},
		Keywords:  []string{"Graph Neural Networks, cardiac"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"graph neural networks", "cardiac"}, res.Tokens)
	assert.Equal(t, retrieve.KindFlattened, res.Round.Round.Kind)
	assert.Equal(t, "graph neural networks cardiac", res.Round.Query)
	assert.Len(t, res.Works, 3)
	assert.Equal(t, []string{"graph neural networks cardiac"}, f.searcher.Queries())
}

func TestKeywordSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t, topicModel{}, nil)
	_, err := f.pipeline.KeywordSearch(context.Background(), types.QueryInput{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, Options{MaxTerms: 3, PerGroup: 30, TopK: 90}, Options{}.withDefaults())
	assert.Equal(t, 7, Options{TopK: 7}.withDefaults().TopK)
}
