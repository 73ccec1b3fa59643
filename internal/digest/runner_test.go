// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/internal/pipeline"
	"github.com/pdiddy/proxima/pkg/types"
)

type fakeRanker struct {
	mu     sync.Mutex
	ranked []types.ScoredWork
	err    error
	inputs []types.QueryInput
	opts   []pipeline.Options
}

func (f *fakeRanker) Run(_ context.Context, in types.QueryInput, opts pipeline.Options) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Ranked: f.ranked}, nil
}

type recordingSink struct {
	digests []Digest
	err     error
}

func (s *recordingSink) Send(_ context.Context, d Digest) error {
	if s.err != nil {
		return s.err
	}
	s.digests = append(s.digests, d)
	return nil
}

func scored(id string, total float64) types.ScoredWork {
	return types.ScoredWork{
		TotalScore:   total,
		Similarities: []float64{total},
		Work:         types.Work{ID: "https://openalex.org/" + id, Title: "Work " + id},
	}
}

func addVerified(t *testing.T, s *Store, email string) Subscription {
	t.Helper()
	sub := mustSubscription(t, email, t0)
	sub.Verified = true
	require.NoError(t, s.Add(context.Background(), sub))
	return sub
}

func newTestRunner(t *testing.T, s *Store, r Ranker, sink Sink, m *metrics.Metrics, now time.Time) *Runner {
	return NewRunner(s, r, sink, types.DigestConfig{MaxItems: 2},
		WithClock(func() time.Time { return now }),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(m),
	)
}

func TestRunner_SendsNewPositiveWorks(t *testing.T) {
	s := newTestStore(t)
	sub := addVerified(t, s, "a@example.org")
	require.NoError(t, s.RecordSent(context.Background(), sub.ID, []string{"W1"}, t0))

	ranker := &fakeRanker{ranked: []types.ScoredWork{
		scored("W1", 0.9), // already sent
		scored("W2", 0.8),
		scored("W3", 0.7),
		scored("W4", 0.6), // over MaxItems
		scored("W5", -0.1),
	}}
	sink := &recordingSink{}
	m := metrics.New()
	now := t0.Add(24 * time.Hour)

	summary, err := newTestRunner(t, s, ranker, sink, m, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Sent: 1}, summary)

	require.Len(t, sink.digests, 1)
	d := sink.digests[0]
	assert.Equal(t, []string{"W2", "W3"}, d.WorkIDs())
	assert.Equal(t, "a@example.org", d.Email)
	assert.InDelta(t, 80.0, d.Items[0].ScorePercent, 1e-9)

	require.Len(t, ranker.inputs, 1)
	in := ranker.inputs[0]
	assert.Equal(t, sub.Keywords, in.Keywords)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), in.To)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), in.From)
	assert.Equal(t, pipeline.Options{PerGroup: 30, TopK: 200}, ranker.opts[0])

	sent, err := s.SentWorkIDs(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"W1": true, "W2": true, "W3": true}, sent)

	got, err := s.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.LastSentAt))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Collectors()[6]))

	// Sent subscriptions are not due again within the interval.
	summary, err = newTestRunner(t, s, ranker, sink, m, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestRunner_RankingErrorIsEmpty(t *testing.T) {
	s := newTestStore(t)
	sub := addVerified(t, s, "a@example.org")
	sink := &recordingSink{}

	summary, err := newTestRunner(t, s, &fakeRanker{err: errors.New("openalex down")}, sink, nil, t0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Empty: 1}, summary)
	assert.Empty(t, sink.digests)

	got, err := s.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSentAt.IsZero(), "still due next run")
}

func TestRunner_NothingPositiveIsEmpty(t *testing.T) {
	s := newTestStore(t)
	addVerified(t, s, "a@example.org")

	ranker := &fakeRanker{ranked: []types.ScoredWork{scored("W1", 0), scored("W2", -0.5)}}
	summary, err := newTestRunner(t, s, ranker, &recordingSink{}, nil, t0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 1, Empty: 1}, summary)
}

func TestRunner_DeliveryFailure(t *testing.T) {
	s := newTestStore(t)
	sub := addVerified(t, s, "a@example.org")
	addVerified(t, s, "b@example.org")

	ranker := &fakeRanker{ranked: []types.ScoredWork{scored("W1", 0.5)}}
	sink := &recordingSink{err: errors.New("smtp refused")}

	summary, err := newTestRunner(t, s, ranker, sink, nil, t0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 2, Failed: 2}, summary)

	sent, err := s.SentWorkIDs(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestRunner_Cancelled(t *testing.T) {
	s := newTestStore(t)
	addVerified(t, s, "a@example.org")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, s, &fakeRanker{}, &recordingSink{}, nil, t0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
