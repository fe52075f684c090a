/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package remediation

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced synchronously by the trigger API, before a job is
// admitted.
var (
	// ErrFeatureDisabled rejects submissions when remediation is turned off.
	ErrFeatureDisabled = errors.New("remediation feature is disabled")

	// ErrTargetNotFound indicates the referenced alert or incident does not
	// exist on the monitoring platform.
	ErrTargetNotFound = errors.New("target not found")

	// ErrRepositoryNotFound terminates a job when every resolution strategy
	// has been exhausted.
	ErrRepositoryNotFound = errors.New("could not determine target repository")
)

// ValidationError rejects a malformed submission synchronously; no job is
// created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthError covers credential and installation problems during token
// exchange. It is terminal for the job.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// EvidenceFetchError wraps a failed evidence fetch. It is the only
// non-terminal pipeline error: the job proceeds without evidence.
type EvidenceFetchError struct {
	IssueID string
	Err     error
}

func (e *EvidenceFetchError) Error() string {
	return fmt.Sprintf("fetching evidence for issue %s: %v", e.IssueID, e.Err)
}

func (e *EvidenceFetchError) Unwrap() error { return e.Err }

// ProposalError categorizes a failed change-proposal step. It is terminal;
// no rollback of already-created branches or commits is attempted.
type ProposalError struct {
	Stage string // "branch", "commit", or "pull_request"
	Err   error
}

func (e *ProposalError) Error() string {
	return fmt.Sprintf("creating proposal (%s): %v", e.Stage, e.Err)
}

func (e *ProposalError) Unwrap() error { return e.Err }
