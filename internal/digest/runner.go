// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/logging"
	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/internal/pipeline"
	"github.com/pdiddy/proxima/pkg/types"
)

// Ranker ranks works for one query. *pipeline.Pipeline satisfies it.
type Ranker interface {
	Run(ctx context.Context, in types.QueryInput, opts pipeline.Options) (*pipeline.Result, error)
}

// Summary counts the outcome of one run.
type Summary struct {
	Due    int `json:"due" yaml:"due"`
	Sent   int `json:"sent" yaml:"sent"`
	Empty  int `json:"empty" yaml:"empty"`
	Failed int `json:"failed" yaml:"failed"`
}

// Runner delivers digests to every due subscription.
type Runner struct {
	store  *Store
	ranker Ranker
	sink   Sink
	cfg    types.DigestConfig
	now    func() time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l.Named("digest")
		}
	}
}

// WithMetrics counts digests by outcome.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner returns a Runner. Zero config fields take the defaults of
// types.DefaultConfig.
func NewRunner(store *Store, ranker Ranker, sink Sink, cfg types.DigestConfig, opts ...RunnerOption) *Runner {
	d := types.DefaultConfig().Digest
	if cfg.Lookback <= 0 {
		cfg.Lookback = d.Lookback
	}
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = d.MaxItems
	}
	if cfg.TopK <= 0 {
		cfg.TopK = d.TopK
	}
	if cfg.PerGroup <= 0 {
		cfg.PerGroup = d.PerGroup
	}

	r := &Runner{
		store:  store,
		ranker: ranker,
		sink:   sink,
		cfg:    cfg,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sends one digest to each due subscription. A ranking failure is
// logged and the subscription counted as empty. A delivery failure is
// counted as failed and leaves the subscription due. Only listing the due
// subscriptions or a cancelled context ends the run with an error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := r.now()
	due, err := r.store.ListDue(ctx, now, r.cfg.Interval)
	if err != nil {
		return Summary{}, fmt.Errorf("listing due subscriptions: %w", err)
	}

	summary := Summary{Due: len(due)}
	r.logger.Info("digest run", zap.Int("due", len(due)))

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log := r.logger.With(zap.String("subscription", sub.ID), logging.Email(sub.Email))
		items, err := r.chooseItems(ctx, sub, now, log)
		if err != nil {
			summary.Failed++
			r.metrics.IncDigest(metrics.DigestFailed)
			log.Error("selecting works", zap.Error(err))
			continue
		}
		if len(items) == 0 {
			summary.Empty++
			r.metrics.IncDigest(metrics.DigestEmpty)
			log.Info("no new works")
			continue
		}

		d := NewDigest(sub, items, now)
		if err := r.sink.Send(ctx, d); err != nil {
			summary.Failed++
			r.metrics.IncDigest(metrics.DigestFailed)
			log.Error("delivering digest", zap.Error(err))
			continue
		}
		if err := r.store.MarkSent(ctx, sub.ID, d.WorkIDs(), now); err != nil {
			summary.Failed++
			r.metrics.IncDigest(metrics.DigestFailed)
			log.Error("recording delivery", zap.Error(err))
			continue
		}

		summary.Sent++
		r.metrics.IncDigest(metrics.DigestSent)
		log.Info("digest sent", zap.Int("items", len(items)))
	}
	return summary, nil
}

// chooseItems ranks works for sub and keeps those with a positive total that
// were never sent before, up to MaxItems.
func (r *Runner) chooseItems(ctx context.Context, sub Subscription, now time.Time, log *zap.Logger) ([]Item, error) {
	sent, err := r.store.SentWorkIDs(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	res, err := r.ranker.Run(ctx, sub.QueryInput(now, r.cfg.Lookback), pipeline.Options{
		PerGroup: r.cfg.PerGroup,
		TopK:     r.cfg.TopK,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("ranking failed, treating as empty", zap.Error(err))
		return nil, nil
	}

	var items []Item
	for _, sw := range res.Ranked {
		if len(items) == r.cfg.MaxItems {
			break
		}
		if sw.TotalScore <= 0 || sent[sw.Work.ShortID()] {
			continue
		}
		items = append(items, NewItem(sw))
	}
	return items, nil
}
