/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor runs admitted remediation jobs. The Pipeline holds the
// whole job lifecycle: mark processing, load the target, resolve its
// repository, optionally collect evidence, synthesize the root cause
// analysis, and optionally open a draft change proposal.
//
// Two Executor implementations hand jobs to the pipeline: an in-process
// worker pool for single-replica deployments, and a NATS JetStream queue for
// durable multi-replica deployments.
package executor
