/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightning_turn_evaluations_total",
			Help: "Total number of agent turn evaluations performed",
		},
		[]string{"namespace"},
	)

	failureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightning_turn_evaluation_failures_total",
			Help: "Total number of failed agent turn evaluations",
		},
		[]string{"namespace"},
	)

	gradeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lightning_turn_evaluation_grade",
			Help: "Most recent agent turn evaluation grade (0.0-1.0)",
		},
		[]string{"namespace"},
	)
)

// MetricsObserver implements Observer interface with Prometheus metrics
type MetricsObserver struct {
	namespace string
	total     atomic.Int64

	evalCounter prometheus.Counter
	failCounter prometheus.Counter
	gradeGauge  prometheus.Gauge
}

var _ Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates a metrics observer for the given namespace
func NewMetricsObserver(namespace string) *MetricsObserver {
	labels := prometheus.Labels{"namespace": namespace}
	return &MetricsObserver{
		namespace:   namespace,
		evalCounter: evaluationCounter.With(labels),
		failCounter: failureCounter.With(labels),
		gradeGauge:  gradeGauge.With(labels),
	}
}

// Increment implements Observer.Increment
func (m *MetricsObserver) Increment() {
	m.total.Add(1)
	m.evalCounter.Inc()
}

// Fail implements Observer.Fail
func (m *MetricsObserver) Fail(string) {
	m.failCounter.Inc()
}

// Grade implements Observer.Grade
func (m *MetricsObserver) Grade(score float64, _ string) {
	m.gradeGauge.Set(score)
}

// Log implements Observer.Log (no-op for metrics observer)
func (m *MetricsObserver) Log(string) {}

// Total implements Observer.Total
func (m *MetricsObserver) Total() int64 {
	return m.total.Load()
}
