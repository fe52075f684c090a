/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package api exposes the remediation trigger and status HTTP endpoints.
package api
