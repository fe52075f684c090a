/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package evidence fetches optional diagnostic evidence for a target from a
// Sentry-compatible issue API.
//
// Evidence is an enrichment, not a dependency: the fetcher makes a single
// bounded attempt and any failure is reported as a
// remediation.EvidenceFetchError, which the pipeline logs and discards. A
// target that carries no issue id never invokes this package.
package evidence
