/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package proposal opens draft pull requests carrying a remediation report.
//
// Given a repository-scoped installation token, the issuer creates a branch
// from the repository's default branch, commits the report as a single
// markdown artifact, and opens a pull request that is always flagged as a
// draft. A branch left behind by an earlier run is reused rather
// than treated as a conflict; every other failure is terminal for the job
// and is categorized as a *remediation.ProposalError. No rollback of an
// already-created branch or commit is attempted.
package proposal
