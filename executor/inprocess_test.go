/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"remedyops.dev/remedy/remediation"
	"remedyops.dev/remedy/retry"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []remediation.Job
	done chan struct{}
	want int
}

func (r *recordingRunner) Run(_ context.Context, job remediation.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if len(r.jobs) == r.want {
		close(r.done)
	}
	return nil
}

func TestInProcessRunsEnqueuedJobs(t *testing.T) {
	const n = 5
	runner := &recordingRunner{done: make(chan struct{}), want: n}
	exec := NewInProcess(runner, n)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- exec.Start(ctx, 2) }()

	for i := range n {
		job := remediation.Job{ID: fmt.Sprintf("job-%d", i), TargetType: remediation.TargetTypeAlert, TargetID: fmt.Sprintf("alert-%d", i)}
		if err := exec.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue() = %v", err)
		}
	}

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs to run")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() = %v, want context.Canceled", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.jobs) != n {
		t.Errorf("ran %d jobs, want %d", len(runner.jobs), n)
	}
}

type flakyRunner struct {
	mu       sync.Mutex
	failures int
	runs     int
	done     chan struct{}
}

func (r *flakyRunner) Run(_ context.Context, _ remediation.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if r.runs <= r.failures {
		return errors.New("enrichment store unavailable")
	}
	close(r.done)
	return nil
}

func TestInProcessRetriesStoreFailures(t *testing.T) {
	runner := &flakyRunner{failures: 2, done: make(chan struct{})}
	exec := NewInProcess(runner, 1, WithRunRetry(retry.Config{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go exec.Start(ctx, 1) //nolint:errcheck

	if err := exec.Enqueue(ctx, remediation.Job{ID: "job-1", TargetType: remediation.TargetTypeAlert, TargetID: "alert-1"}); err != nil {
		t.Fatalf("Enqueue() = %v", err)
	}

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the job to be retried")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.runs != 3 {
		t.Errorf("ran %d times, want 3 (2 failures + 1 success)", runner.runs)
	}
}

func TestInProcessEnqueueFullBuffer(t *testing.T) {
	runner := &recordingRunner{done: make(chan struct{}), want: 1}
	exec := NewInProcess(runner, 1)

	// No workers started: the second enqueue must fail fast, not block.
	if err := exec.Enqueue(t.Context(), remediation.Job{ID: "job-1"}); err != nil {
		t.Fatalf("Enqueue() = %v", err)
	}
	if err := exec.Enqueue(t.Context(), remediation.Job{ID: "job-2"}); err == nil {
		t.Error("Enqueue() on full buffer succeeded, want error")
	}
}
