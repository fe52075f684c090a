/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package enrichment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"remedyops.dev/remedy/remediation"
)

// newTestPostgresStore connects to the database named by TEST_DATABASE_URL,
// skipping the test when none is configured. Each test works against its own
// target IDs so runs do not interfere; rows are removed on cleanup.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewPostgresStore(t.Context(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore() = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testTarget(t *testing.T, s *PostgresStore) string {
	t.Helper()
	targetID := "alert-" + uuid.NewString()
	t.Cleanup(func() {
		// t.Context is already canceled during cleanup.
		//nolint:errcheck
		s.pool.Exec(context.Background(), `DELETE FROM remediation_enrichments WHERE target_id = $1`, targetID)
	})
	return targetID
}

func postgresJob(id, targetID string) remediation.Job {
	return remediation.Job{ID: id, TargetType: remediation.TargetTypeAlert, TargetID: targetID}
}

func TestPostgresStoreAdmitIdempotent(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := t.Context()
	targetID := testTarget(t, s)

	first, err := s.Admit(ctx, postgresJob("job-1", targetID), t0)
	if err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	if !first.Created {
		t.Fatal("first Admit() should create a job")
	}

	// While the first job is pending the upsert must not fire; the caller
	// gets the in-flight job back.
	second, err := s.Admit(ctx, postgresJob("job-2", targetID), t0.Add(time.Second))
	if err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	if second.Created {
		t.Error("second Admit() created a job while one was pending")
	}
	if second.Job.ID != "job-1" {
		t.Errorf("second Admit() returned job %q, want job-1", second.Job.ID)
	}
	if second.Job.TargetType != remediation.TargetTypeAlert {
		t.Errorf("second Admit() returned target type %q, want alert", second.Job.TargetType)
	}

	// Same while processing.
	if err := s.MarkProcessing(ctx, postgresJob("job-1", targetID), t0.Add(time.Second)); err != nil {
		t.Fatalf("MarkProcessing() = %v", err)
	}
	third, err := s.Admit(ctx, postgresJob("job-3", targetID), t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	if third.Created {
		t.Error("Admit() created a job while one was processing")
	}
}

func TestPostgresStoreAdmitAfterTerminal(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := t.Context()
	targetID := testTarget(t, s)

	if _, err := s.Admit(ctx, postgresJob("job-1", targetID), t0); err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	res := Result{Summary: "root cause", FullReport: "# RCA", Repository: "acme/widgets", PRURL: "https://github.com/acme/widgets/pull/7"}
	if err := s.Complete(ctx, postgresJob("job-1", targetID), res, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Complete() = %v", err)
	}

	// A terminal record is superseded, and every field from the previous
	// run is reset.
	adm, err := s.Admit(ctx, postgresJob("job-2", targetID), t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Admit() after success = %v", err)
	}
	if !adm.Created {
		t.Fatal("Admit() after success should create a new job")
	}
	rec, err := s.Get(ctx, targetID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if rec.JobID != "job-2" || rec.Status != remediation.StatusPending {
		t.Errorf("record = %s/%s, want job-2/pending", rec.JobID, rec.Status)
	}
	if rec.Summary != "" || rec.FullReport != "" || rec.Repository != "" || rec.PRURL != "" || rec.ErrorMessage != "" {
		t.Errorf("superseding record kept stale fields: %+v", rec)
	}
	if rec.StartedAt != nil || rec.CompletedAt != nil {
		t.Errorf("superseding record kept stale timestamps: %+v", rec)
	}

	// Failed records are superseded too.
	if err := s.Fail(ctx, postgresJob("job-2", targetID), "boom", t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("Fail() = %v", err)
	}
	adm, err = s.Admit(ctx, postgresJob("job-3", targetID), t0.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Admit() after failure = %v", err)
	}
	if !adm.Created {
		t.Error("Admit() after failure should create a new job")
	}
}

func TestPostgresStoreConcurrentAdmit(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := t.Context()
	targetID := testTarget(t, s)

	const n = 16
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adm, err := s.Admit(ctx, postgresJob(fmt.Sprintf("job-%d", i), targetID), t0)
			if err != nil {
				t.Errorf("Admit() = %v", err)
				return
			}
			if adm.Created {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Errorf("%d concurrent Admit() calls created %d jobs, want exactly 1", n, got)
	}
}

func TestPostgresStoreStaleJobWritesIgnored(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := t.Context()
	targetID := testTarget(t, s)

	if _, err := s.Admit(ctx, postgresJob("job-1", targetID), t0); err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	if err := s.Fail(ctx, postgresJob("job-1", targetID), "boom", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Fail() = %v", err)
	}
	if _, err := s.Admit(ctx, postgresJob("job-2", targetID), t0.Add(time.Hour)); err != nil {
		t.Fatalf("Admit() = %v", err)
	}

	// Writes scoped to the superseded job must not touch the new record.
	if err := s.Complete(ctx, postgresJob("job-1", targetID), Result{Summary: "stale"}, t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("Complete() = %v", err)
	}
	rec, err := s.Get(ctx, targetID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if rec.JobID != "job-2" || rec.Status != remediation.StatusPending || rec.Summary != "" {
		t.Errorf("stale write leaked into record: %+v", rec)
	}
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := t.Context()
	targetID := testTarget(t, s)

	if _, err := s.Get(ctx, targetID); !errors.Is(err, remediation.ErrTargetNotFound) {
		t.Fatalf("Get() before admission = %v, want ErrTargetNotFound", err)
	}

	job := postgresJob("job-1", targetID)
	if _, err := s.Admit(ctx, job, t0); err != nil {
		t.Fatalf("Admit() = %v", err)
	}
	if err := s.MarkProcessing(ctx, job, t0.Add(time.Second)); err != nil {
		t.Fatalf("MarkProcessing() = %v", err)
	}
	res := Result{Summary: "root cause", FullReport: "# RCA", Repository: "acme/widgets", PRURL: "https://github.com/acme/widgets/pull/7"}
	if err := s.Complete(ctx, job, res, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Complete() = %v", err)
	}

	rec, err := s.Get(ctx, targetID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if rec.Status != remediation.StatusSuccess {
		t.Errorf("status = %s, want success", rec.Status)
	}
	if rec.Summary != res.Summary || rec.FullReport != res.FullReport || rec.Repository != res.Repository || rec.PRURL != res.PRURL {
		t.Errorf("record = %+v, want result fields %+v", rec, res)
	}
	if rec.StartedAt == nil || !rec.StartedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("started_at = %v, want %v", rec.StartedAt, t0.Add(time.Second))
	}
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("completed_at = %v, want %v", rec.CompletedAt, t0.Add(time.Minute))
	}
}
