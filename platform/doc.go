/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package platform reads alerts and incidents from the monitoring platform's
// HTTP API.
package platform
