/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry executes operations against flaky upstreams with exponential
// backoff and jitter.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config bounds the retry loop.
type Config struct {
	// MaxRetries is the number of attempts after the first. 0 disables
	// retrying.
	MaxRetries int
	// BaseBackoff is the delay before the first retry; it doubles each
	// attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// MaxJitter is added randomly to each backoff to avoid thundering herd.
	MaxJitter time.Duration
}

// DefaultConfig suits short HTTP calls to monitoring and diagnostic APIs:
// quick first retry, capped well below typical job deadlines.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: 250 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		MaxJitter:   100 * time.Millisecond,
	}
}

// Do executes fn up to 1+cfg.MaxRetries times, sleeping between attempts.
// Errors that isRetryable rejects are returned immediately; exhausting the
// attempt budget wraps the last error with the operation name.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		result, err := fn()
		switch {
		case err == nil:
			return result, nil
		case !isRetryable(err):
			return result, err
		case attempt >= cfg.MaxRetries:
			return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
		}

		wait := delay(cfg, attempt)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("Transient upstream error, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// delay is the pause before retry number attempt+1: BaseBackoff doubled per
// attempt, capped at MaxBackoff, with up to MaxJitter of random slack.
func delay(cfg Config, attempt int) time.Duration {
	d := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
	if cfg.MaxJitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}
