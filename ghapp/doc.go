/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package ghapp exchanges GitHub App credentials for short-lived,
// repository-scoped installation tokens.
//
// The application's private key signs a minutes-scale JWT (via
// ghinstallation's AppsTransport); that assertion is exchanged for a token
// scoped to the installation covering one repository. Tokens are cached per
// repository and refreshed only when near expiry, so a long-running worker
// never reuses a stale token and never holds a token scoped to the wrong
// repository.
//
// Failures surface as *remediation.AuthError: unreadable key material as
// "failed to generate token", an app that is not installed on the target
// repository as "installation not found". Both are terminal for the job.
package ghapp
