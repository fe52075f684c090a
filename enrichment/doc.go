/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package enrichment persists remediation job state as enrichment records
// keyed by target ID. The store is the single source of truth for admission:
// Admit atomically creates or supersedes a record so that concurrent triggers
// for the same target admit exactly one job.
//
// Two implementations are provided: a Postgres-backed store for real
// deployments and an in-memory store for single-process setups and tests.
package enrichment
