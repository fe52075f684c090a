/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package remediation defines the core domain types shared by the
// remediation pipeline: targets, repository references, evidence bundles,
// job records, and the error taxonomy.
//
// A remediation job is identified by its target (an alert or incident on the
// monitoring platform) plus a job ID minted at admission. Job state is
// persisted as a flat set of enrichment fields on the target's record; see
// the enrichment package for the store contract and the executor package for
// the pipeline that drives a job from pending to a terminal state.
package remediation
