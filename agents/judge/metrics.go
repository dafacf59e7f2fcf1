/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_evaluations_total",
			Help: "Evaluations by outcome: a verdict on success, an error kind on failure",
		},
		[]string{"outcome"},
	)

	retryCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "judge_retries_total",
			Help: "Corrective retries issued after a failed validation",
		},
	)

	scoreHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judge_score",
			Help:    "Recomputed overall score of successful evaluations",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	violationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_violations_total",
			Help: "Violations reported in successful evaluations",
		},
		[]string{"code"},
	)
)
