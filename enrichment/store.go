/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package enrichment

import (
	"context"
	"time"

	"remedyops.dev/remedy/remediation"
)

// Admission is the result of an Admit call. Created reports whether the job
// was newly admitted; when false, Job carries the identifiers of the run that
// is already in flight.
type Admission struct {
	Job     remediation.Job
	Created bool
}

// Result carries the fields written on successful completion.
type Result struct {
	Summary    string
	FullReport string
	Repository string
	PRURL      string
}

// Store persists enrichment records. All mutations after admission carry the
// job ID and are ignored when a newer job has superseded the record, so a
// stale worker can never clobber a fresher run.
type Store interface {
	// Admit creates a pending record for the target, or supersedes a
	// terminal one. When a non-terminal record exists it returns the
	// in-flight job with Created=false.
	Admit(ctx context.Context, job remediation.Job, now time.Time) (*Admission, error)

	// MarkProcessing transitions the record to processing and stamps
	// StartedAt.
	MarkProcessing(ctx context.Context, job remediation.Job, now time.Time) error

	// Complete transitions the record to success with the given result.
	Complete(ctx context.Context, job remediation.Job, res Result, now time.Time) error

	// Fail transitions the record to failed with an operator-readable
	// message.
	Fail(ctx context.Context, job remediation.Job, msg string, now time.Time) error

	// Get returns the record for a target, or ErrTargetNotFound when no
	// remediation has ever been admitted for it.
	Get(ctx context.Context, targetID string) (*remediation.Record, error)
}
