/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Session provides OpenTelemetry metrics for traced agent sessions.
// Counter creation degrades to no-op instruments instead of failing.
type Session struct {
	started      metric.Int64Counter
	ended        metric.Int64Counter
	toolTraces   metric.Int64Counter
	rewards      metric.Int64Counter
	tokens       metric.Int64Counter
	failures     metric.Int64Counter
	rewardScore  metric.Float64Histogram
	attrEnricher AttributeEnricher
}

// NewSession creates session metrics on the global meter provider.
func NewSession(meterName string) *Session {
	return NewSessionWithProvider(otel.GetMeterProvider(), meterName)
}

// NewSessionWithProvider creates session metrics on the given meter provider.
func NewSessionWithProvider(provider metric.MeterProvider, meterName string) *Session {
	meter := provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			slog.Warn("Failed to create counter, metric will be disabled", "error", err, "meter", meterName, "counter", name)
			return noop.Int64Counter{}
		}
		return c
	}

	rewardScore, err := meter.Float64Histogram("lightning.reward.score",
		metric.WithDescription("Shaped reward computed for each completed session"),
		metric.WithUnit("{reward}"))
	if err != nil {
		slog.Warn("Failed to create reward histogram, metric will be disabled", "error", err, "meter", meterName)
		rewardScore = noop.Float64Histogram{}
	}

	return &Session{
		started:     counter("lightning.session.started", "The number of sessions started", "{sessions}"),
		ended:       counter("lightning.session.ended", "The number of sessions ended", "{sessions}"),
		toolTraces:  counter("lightning.tool.traces", "The number of tool invocations traced", "{calls}"),
		rewards:     counter("lightning.reward.emitted", "The number of rewards emitted", "{rewards}"),
		tokens:      counter("lightning.tokens.used", "Tokens reported with session rewards", "{tokens}"),
		failures:    counter("lightning.bridge.failures", "Collector calls that did not succeed", "{calls}"),
		rewardScore: rewardScore,
	}
}

// SetAttributeEnricher sets the attribute enricher for this metrics instance.
func (m *Session) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

func (m *Session) attrs(ctx context.Context, base ...attribute.KeyValue) metric.MeasurementOption {
	if m.attrEnricher != nil {
		base = m.attrEnricher(ctx, base)
	}
	return metric.WithAttributes(base...)
}

// RecordStart records a session start attempt.
func (m *Session) RecordStart(ctx context.Context, ok bool) {
	m.started.Add(ctx, 1, m.attrs(ctx, attribute.Bool("success", ok)))
}

// RecordEnd records a session end attempt.
func (m *Session) RecordEnd(ctx context.Context, ok bool) {
	m.ended.Add(ctx, 1, m.attrs(ctx, attribute.Bool("success", ok)))
}

// RecordToolTrace records a tool invocation trace.
func (m *Session) RecordToolTrace(ctx context.Context, toolName string, ok bool) {
	m.toolTraces.Add(ctx, 1, m.attrs(ctx,
		attribute.String("tool", toolName),
		attribute.Bool("success", ok)))
}

// RecordReward records an emitted reward, its shaped score and token usage.
func (m *Session) RecordReward(ctx context.Context, taskSuccess bool, score float64, tokensUsed int64) {
	opt := m.attrs(ctx, attribute.Bool("task_success", taskSuccess))
	m.rewards.Add(ctx, 1, opt)
	m.rewardScore.Record(ctx, score, opt)
	if tokensUsed > 0 {
		m.tokens.Add(ctx, tokensUsed, opt)
	}
}

// RecordFailure records a collector call that failed with the given kind.
func (m *Session) RecordFailure(ctx context.Context, operation, kind string) {
	m.failures.Add(ctx, 1, m.attrs(ctx,
		attribute.String("operation", operation),
		attribute.String("kind", kind)))
}
