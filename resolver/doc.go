/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package resolver maps a remediation target to a code repository.
//
// Resolution walks a fixed priority order, first match wins:
//
//  1. the target's "repo" tag (owner/name)
//  2. the target's "github_repo" tag (owner/name)
//  3. a read-only service-name → repository mapping supplied at startup
//
// When no strategy matches, Resolve returns
// remediation.ErrRepositoryNotFound and the job terminates immediately. A tag
// whose value does not parse as owner/name is logged and skipped so lower
// priority strategies still get a chance.
package resolver
