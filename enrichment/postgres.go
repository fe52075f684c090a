/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"remedyops.dev/remedy/remediation"
)

// PostgresStore persists enrichment records in a single table keyed by target
// ID. Admission relies on the table's primary key and a conditional upsert so
// concurrent triggers for the same target race inside the database, not in
// application code.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS remediation_enrichments (
	target_id     TEXT PRIMARY KEY,
	target_type   TEXT NOT NULL,
	job_id        TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	summary       TEXT NOT NULL DEFAULT '',
	full_report   TEXT NOT NULL DEFAULT '',
	repository    TEXT NOT NULL DEFAULT '',
	pr_url        TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	admitted_at   TIMESTAMPTZ NOT NULL
)`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating enrichment table: %w", err)
	}
	return nil
}

// Admit implements Store. The upsert only replaces terminal records; when the
// existing record is pending or processing the WHERE clause rejects the
// update, no row is returned, and the in-flight job is read back instead.
func (s *PostgresStore) Admit(ctx context.Context, job remediation.Job, now time.Time) (*Admission, error) {
	const admit = `
INSERT INTO remediation_enrichments (target_id, target_type, job_id, status, admitted_at)
VALUES ($1, $2, $3, 'pending', $4)
ON CONFLICT (target_id) DO UPDATE SET
	target_type   = EXCLUDED.target_type,
	job_id        = EXCLUDED.job_id,
	status        = 'pending',
	started_at    = NULL,
	completed_at  = NULL,
	summary       = '',
	full_report   = '',
	repository    = '',
	pr_url        = '',
	error_message = '',
	admitted_at   = EXCLUDED.admitted_at
WHERE remediation_enrichments.status NOT IN ('pending', 'processing')
RETURNING job_id`

	var jobID string
	err := s.pool.QueryRow(ctx, admit, job.TargetID, job.TargetType, job.ID, now).Scan(&jobID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Another job is already in flight for this target.
		const inflight = `SELECT job_id, target_type FROM remediation_enrichments WHERE target_id = $1`
		existing := remediation.Job{TargetID: job.TargetID}
		if err := s.pool.QueryRow(ctx, inflight, job.TargetID).Scan(&existing.ID, &existing.TargetType); err != nil {
			return nil, fmt.Errorf("reading in-flight job: %w", err)
		}
		return &Admission{Job: existing}, nil
	case err != nil:
		return nil, fmt.Errorf("admitting job: %w", err)
	}
	return &Admission{Job: job, Created: true}, nil
}

// MarkProcessing implements Store.
func (s *PostgresStore) MarkProcessing(ctx context.Context, job remediation.Job, now time.Time) error {
	const q = `
UPDATE remediation_enrichments
SET status = 'processing', started_at = $3
WHERE target_id = $1 AND job_id = $2`
	if _, err := s.pool.Exec(ctx, q, job.TargetID, job.ID, now); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}
	return nil
}

// Complete implements Store.
func (s *PostgresStore) Complete(ctx context.Context, job remediation.Job, res Result, now time.Time) error {
	const q = `
UPDATE remediation_enrichments
SET status = 'success', completed_at = $3, summary = $4, full_report = $5,
    repository = $6, pr_url = $7, error_message = ''
WHERE target_id = $1 AND job_id = $2`
	if _, err := s.pool.Exec(ctx, q, job.TargetID, job.ID, now,
		res.Summary, res.FullReport, res.Repository, res.PRURL); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	return nil
}

// Fail implements Store.
func (s *PostgresStore) Fail(ctx context.Context, job remediation.Job, msg string, now time.Time) error {
	const q = `
UPDATE remediation_enrichments
SET status = 'failed', completed_at = $3, error_message = $4
WHERE target_id = $1 AND job_id = $2`
	if _, err := s.pool.Exec(ctx, q, job.TargetID, job.ID, now, msg); err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, targetID string) (*remediation.Record, error) {
	const q = `
SELECT job_id, target_type, status, started_at, completed_at,
       summary, full_report, repository, pr_url, error_message
FROM remediation_enrichments WHERE target_id = $1`

	rec := remediation.Record{TargetID: targetID}
	err := s.pool.QueryRow(ctx, q, targetID).Scan(
		&rec.JobID, &rec.TargetType, &rec.Status, &rec.StartedAt, &rec.CompletedAt,
		&rec.Summary, &rec.FullReport, &rec.Repository, &rec.PRURL, &rec.ErrorMessage)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, remediation.ErrTargetNotFound
	case err != nil:
		return nil, fmt.Errorf("reading enrichment record: %w", err)
	}
	return &rec, nil
}
