/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remedy_jobs_total",
		Help: "Remediation jobs by terminal outcome.",
	}, []string{"outcome"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "remedy_job_duration_seconds",
		Help:    "Wall-clock duration of remediation job runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remedy_inprocess_queue_depth",
		Help: "Jobs buffered by the in-process executor.",
	})
)
