/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"remedyops.dev/remedy/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func alwaysRetryable(err error) bool {
	return err != nil
}

func TestDoSuccess(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	result, err := retry.Do(context.Background(), testConfig(), "fetch_issue", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if result != "ok" {
		t.Fatalf("Do() = %q, want ok", result)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("made %d attempts, want 1", got)
	}
}

func TestDoSuccessAfterRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	transient := errors.New("502 bad gateway")

	result, err := retry.Do(context.Background(), testConfig(), "fetch_issue", alwaysRetryable, func() (string, error) {
		if attempts.Add(1) < 3 {
			return "", transient
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if result != "recovered" {
		t.Fatalf("Do() = %q, want recovered", result)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("made %d attempts, want 3", got)
	}
}

func TestDoExhaustedRetries(t *testing.T) {
	t.Parallel()
	transient := errors.New("503 service unavailable")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "fetch_issue", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "", transient
	})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := attempts.Load(); got != 4 {
		t.Fatalf("made %d attempts, want 4 (1 initial + 3 retries)", got)
	}
	if !errors.Is(err, transient) {
		t.Fatalf("error does not wrap the original: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "fetch_issue failed after 3 retries") {
		t.Fatalf("error = %q", err)
	}
}

func TestDoNonRetryableError(t *testing.T) {
	t.Parallel()
	permanent := errors.New("404 not found")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "fetch_issue", func(error) bool { return false }, func() (string, error) {
		attempts.Add(1)
		return "", permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do() = %v, want the original error", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("made %d attempts, want 1 for a permanent error", got)
	}
}

func TestDoContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	transient := errors.New("connection reset")

	var attempts atomic.Int32
	_, err := retry.Do(ctx, testConfig(), "fetch_issue", alwaysRetryable, func() (string, error) {
		if attempts.Add(1) == 1 {
			cancel()
		}
		return "", transient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
}

func TestDoZeroRetries(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxRetries = 0

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), cfg, "fetch_issue", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error with zero retries")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("made %d attempts, want 1", got)
	}
}
