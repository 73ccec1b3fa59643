// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the first backoff interval. Tests override this to
// avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// RetryMaxDelay caps a single backoff wait, including server-supplied
// Retry-After values.
var RetryMaxDelay = 60 * time.Second

const defaultMaxRetries = 5

// Retrier executes HTTP requests and retries on HTTP 429 and 5xx responses
// with exponential backoff: RetryBaseDelay, doubled on each attempt. A
// Retry-After header in seconds replaces the computed delay.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	Logger     *zap.Logger
}

// NewRetrier returns a Retrier. A nil client means http.DefaultClient;
// maxRetries <= 0 means the default (5).
func NewRetrier(client *http.Client, maxRetries int, logger *zap.Logger) *Retrier {
	if client == nil {
		client = http.DefaultClient
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{Client: client, MaxRetries: maxRetries, Logger: logger}
}

// Do sends req and retries retryable statuses. On each retry the previous
// body is drained and closed. If ctx is cancelled during a wait Do returns
// ctx.Err(). After exhausting retries the last response is returned as-is
// so the caller can inspect it. Transport errors are not retried.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.Client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= r.MaxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		r.Logger.Debug("retrying request",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.MaxRetries),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Retryable reports whether status warrants another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func backoff(attempt int, retryAfter string) time.Duration {
	wait := RetryBaseDelay << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}
	if wait > RetryMaxDelay || wait < 0 {
		wait = RetryMaxDelay
	}
	return wait
}
