/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package remediation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TargetType identifies the kind of monitoring-platform entity a job
// remediates.
type TargetType string

const (
	TargetTypeAlert    TargetType = "alert"
	TargetTypeIncident TargetType = "incident"
)

// ParseTargetType validates a raw target type string.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetTypeAlert, TargetTypeIncident:
		return TargetType(s), nil
	default:
		return "", fmt.Errorf("unknown target type %q", s)
	}
}

// Target is the read-only view of an alert or incident supplied by the
// monitoring platform.
type Target struct {
	Type        TargetType        `json:"type"`
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Service     string            `json:"service"`
	Severity    string            `json:"severity"`
	Tags        map[string]string `json:"tags"`
}

// Tag returns the trimmed value of the named tag, or "" when absent.
func (t *Target) Tag(key string) string {
	if t == nil || t.Tags == nil {
		return ""
	}
	return strings.TrimSpace(t.Tags[key])
}

// Title returns a human-readable name for the target, preferring its
// description.
func (t *Target) Title() string {
	if t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("%s %s", t.Type, t.ID)
}

// TargetSource reads targets from the monitoring platform. Implementations
// must return ErrTargetNotFound when the referenced entity does not exist.
type TargetSource interface {
	Target(ctx context.Context, typ TargetType, id string) (*Target, error)
}

// RepositoryReference identifies a code repository by owner and name.
type RepositoryReference struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepository parses an "owner/name" string.
func ParseRepository(s string) (RepositoryReference, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepositoryReference{}, fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return RepositoryReference{Owner: owner, Name: name}, nil
}

func (r RepositoryReference) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the reference is unset.
func (r RepositoryReference) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// EvidenceBundle holds optional diagnostic evidence fetched for a target.
// Absence of a bundle is a valid, non-error state.
type EvidenceBundle struct {
	IssueID       string `json:"issue_id"`
	IssueURL      string `json:"issue_url"`
	ExceptionType string `json:"exception_type"`
	Message       string `json:"message"`
	TopStackFrame string `json:"top_stack_frame"`
}

// Status is the persisted state of a remediation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible for this
// status. A terminal record is only superseded by a brand-new job.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Job identifies a single remediation run. It is the unit placed on the work
// queue: small, serializable, and self-describing.
type Job struct {
	ID         string     `json:"id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
}

// Record is the flat set of namespaced enrichment fields persisted on the
// target's record. It is the only channel by which admission checks and
// status queries observe job state.
type Record struct {
	JobID        string     `json:"job_id"`
	TargetType   TargetType `json:"target_type"`
	TargetID     string     `json:"target_id"`
	Status       Status     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	FullReport   string     `json:"full_report,omitempty"`
	Repository   string     `json:"repository,omitempty"`
	PRURL        string     `json:"pr_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Report is the output of the RCA synthesizer.
type Report struct {
	Summary     string
	Markdown    string
	FixCategory string
	GeneratedAt time.Time
}
