/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "remedy_admissions_total",
	Help: "Remediation trigger admissions by result.",
}, []string{"result"})
