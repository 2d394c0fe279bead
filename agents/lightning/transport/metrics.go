/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightning_bridge_requests_total",
			Help: "Total number of requests sent to the lightning collector",
		},
		[]string{"path", "outcome"},
	)

	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lightning_bridge_request_duration_seconds",
			Help:    "Latency of requests sent to the lightning collector",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

// outcome is the metric label for a finished request.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
