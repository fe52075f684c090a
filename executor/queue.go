/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/nats-io/nats.go"

	"remedyops.dev/remedy/remediation"
)

// QueueConfig locates the JetStream stream remediation jobs flow through.
type QueueConfig struct {
	URL     string `env:"NATS_URL,default=nats://localhost:4222"`
	Stream  string `env:"NATS_STREAM,default=REMEDY"`
	Subject string `env:"NATS_SUBJECT,default=remedy.jobs"`
	Durable string `env:"NATS_DURABLE,default=remedy-workers"`
}

// Queue publishes jobs to a JetStream stream so workers in other processes
// can pick them up. Jobs survive process restarts.
type Queue struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  QueueConfig
}

var _ Executor = (*Queue)(nil)

// NewQueue connects to NATS and ensures the stream exists.
func NewQueue(ctx context.Context, cfg QueueConfig) (*Queue, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		conn.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", cfg.Stream, err)
	}

	clog.FromContext(ctx).Infof("Connected to NATS stream %s (%s)", cfg.Stream, cfg.Subject)
	return &Queue{conn: conn, js: js, cfg: cfg}, nil
}

// Close drains the connection.
func (q *Queue) Close() {
	q.conn.Close()
}

// Enqueue implements Executor.
func (q *Queue) Enqueue(ctx context.Context, job remediation.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if _, err := q.js.Publish(q.cfg.Subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publishing job %s: %w", job.ID, err)
	}
	return nil
}

// Worker consumes jobs from the stream and hands them to a Runner.
type Worker struct {
	queue  *Queue
	runner Runner
}

// NewWorker constructs a Worker over an existing queue connection.
func NewWorker(queue *Queue, runner Runner) *Worker {
	return &Worker{queue: queue, runner: runner}
}

// Run consumes jobs until the context is canceled. A message is acked once
// the pipeline has recorded a terminal outcome for it; undecodable payloads
// are acked too, since redelivery cannot fix them. When the enrichment store
// write itself fails the message is nacked so JetStream redelivers it, and
// the job-scoped record updates make the re-run safe.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.queue.js.PullSubscribe(w.queue.cfg.Subject, w.queue.cfg.Durable)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", w.queue.cfg.Subject, err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := sub.Fetch(1, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("fetching jobs: %w", err)
		}
		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	log := clog.FromContext(ctx)
	if err := w.consume(ctx, msg.Data); err != nil {
		log.Errorf("Leaving message for redelivery: %v", err)
		if err := msg.Nak(); err != nil {
			log.Warnf("Nacking message: %v", err)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		log.Warnf("Acking message: %v", err)
	}
}

// consume decodes and runs one job payload. A nil return means the message
// is settled and may be acked; an error means no terminal outcome was
// recorded and the message should be redelivered.
func (w *Worker) consume(ctx context.Context, data []byte) error {
	log := clog.FromContext(ctx)

	var job remediation.Job
	if err := json.Unmarshal(data, &job); err != nil {
		log.Errorf("Dropping undecodable job payload: %v", err)
		return nil
	}
	if err := w.runner.Run(ctx, job); err != nil {
		return fmt.Errorf("running job %s: %w", job.ID, err)
	}
	return nil
}
