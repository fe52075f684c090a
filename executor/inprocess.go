/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"remedyops.dev/remedy/remediation"
	"remedyops.dev/remedy/retry"
)

// Executor accepts admitted jobs for asynchronous execution.
type Executor interface {
	Enqueue(ctx context.Context, job remediation.Job) error
}

// InProcess executes jobs on a bounded worker pool inside the API process.
// Jobs are lost on restart; the enrichment record stays pending or processing
// until a fresh trigger supersedes it.
type InProcess struct {
	runner Runner
	jobs   chan remediation.Job
	retry  retry.Config
}

var _ Executor = (*InProcess)(nil)

// InProcessOption customizes an in-process executor.
type InProcessOption func(*InProcess)

// WithRunRetry overrides the backoff applied when a job run fails to record
// an outcome.
func WithRunRetry(cfg retry.Config) InProcessOption {
	return func(e *InProcess) {
		e.retry = cfg
	}
}

// NewInProcess constructs an in-process executor with the given buffer size.
func NewInProcess(runner Runner, buffer int, opts ...InProcessOption) *InProcess {
	if buffer <= 0 {
		buffer = 64
	}
	e := &InProcess{
		runner: runner,
		jobs:   make(chan remediation.Job, buffer),
		retry:  retry.DefaultConfig(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enqueue implements Executor. It fails when the buffer is full rather than
// blocking the API handler.
func (e *InProcess) Enqueue(ctx context.Context, job remediation.Job) error {
	select {
	case e.jobs <- job:
		queueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("executor buffer full, dropping job %s", job.ID)
	}
}

// Start runs workers until the context is canceled. It blocks.
func (e *InProcess) Start(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	log := clog.FromContext(ctx)
	log.Infof("Starting %d in-process remediation workers", workers)

	eg, ctx := errgroup.WithContext(ctx)
	for range workers {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job := <-e.jobs:
					queueDepth.Dec()
					e.run(ctx, job)
				}
			}
		})
	}
	return eg.Wait()
}

// run executes one job. The runner returns an error only when the enrichment
// store write failed before a terminal outcome was recorded; with no broker
// to redeliver the job, those failures are retried in place so the record
// does not stay in-flight forever.
func (e *InProcess) run(ctx context.Context, job remediation.Job) {
	if _, err := retry.Do(ctx, e.retry, "run_job", func(error) bool { return true }, func() (struct{}, error) {
		return struct{}{}, e.runner.Run(ctx, job)
	}); err != nil {
		clog.FromContext(ctx).Errorf("Abandoning job %s: %v", job.ID, err)
	}
}
