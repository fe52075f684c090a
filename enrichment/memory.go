/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package enrichment

import (
	"context"
	"sync"
	"time"

	"remedyops.dev/remedy/remediation"
)

// MemoryStore keeps enrichment records in process memory. Suitable for
// single-replica in-process deployments and tests; state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*remediation.Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*remediation.Record{}}
}

// Admit implements Store.
func (s *MemoryStore) Admit(_ context.Context, job remediation.Job, now time.Time) (*Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[job.TargetID]; ok && !rec.Status.Terminal() {
		return &Admission{
			Job: remediation.Job{
				ID:         rec.JobID,
				TargetType: rec.TargetType,
				TargetID:   rec.TargetID,
			},
		}, nil
	}
	s.records[job.TargetID] = &remediation.Record{
		JobID:      job.ID,
		TargetType: job.TargetType,
		TargetID:   job.TargetID,
		Status:     remediation.StatusPending,
	}
	return &Admission{Job: job, Created: true}, nil
}

// MarkProcessing implements Store.
func (s *MemoryStore) MarkProcessing(_ context.Context, job remediation.Job, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.current(job)
	if !ok {
		return nil
	}
	rec.Status = remediation.StatusProcessing
	started := now
	rec.StartedAt = &started
	return nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, job remediation.Job, res Result, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.current(job)
	if !ok {
		return nil
	}
	rec.Status = remediation.StatusSuccess
	completed := now
	rec.CompletedAt = &completed
	rec.Summary = res.Summary
	rec.FullReport = res.FullReport
	rec.Repository = res.Repository
	rec.PRURL = res.PRURL
	rec.ErrorMessage = ""
	return nil
}

// Fail implements Store.
func (s *MemoryStore) Fail(_ context.Context, job remediation.Job, msg string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.current(job)
	if !ok {
		return nil
	}
	rec.Status = remediation.StatusFailed
	completed := now
	rec.CompletedAt = &completed
	rec.ErrorMessage = msg
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, targetID string) (*remediation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[targetID]
	if !ok {
		return nil, remediation.ErrTargetNotFound
	}
	cp := *rec
	return &cp, nil
}

// current returns the record for the job's target only when the job still
// owns it. Writes from superseded jobs are dropped.
func (s *MemoryStore) current(job remediation.Job) (*remediation.Record, bool) {
	rec, ok := s.records[job.TargetID]
	if !ok || rec.JobID != job.ID {
		return nil, false
	}
	return rec, true
}
