/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"log/slog"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Tracer is the interface for creating and managing traces
type Tracer interface {
	// NewTrace creates a new trace for the given user message
	NewTrace(ctx context.Context, prompt string) *Trace
	// RecordTrace records a completed trace
	RecordTrace(trace *Trace)
}

// tracerKey is the context key for the Tracer
type tracerKey struct{}

// WithTracer returns a new context with the given tracer
func WithTracer(ctx context.Context, tracer Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

// TracerFromContext returns the tracer from the context, or creates a default tracer
func TracerFromContext(ctx context.Context) Tracer {
	if tracer, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return tracer
	}
	return NewDefaultTracer(ctx)
}

// StartTrace starts a new trace using the tracer from the context
func StartTrace(ctx context.Context, prompt string) *Trace {
	return TracerFromContext(ctx).NewTrace(ctx, prompt)
}

// TraceCallback is a function that receives completed traces
type TraceCallback func(*Trace)

// byCodeTracer implements Tracer by invoking callback functions
type byCodeTracer struct {
	callbacks []TraceCallback
}

// ByCode creates a Tracer that invokes the given callbacks when traces are recorded
func ByCode(callbacks ...TraceCallback) Tracer {
	return &byCodeTracer{
		callbacks: callbacks,
	}
}

// NewTrace creates a new trace with the given prompt
func (t *byCodeTracer) NewTrace(ctx context.Context, prompt string) *Trace {
	return newTraceWithTracer(ctx, t, prompt)
}

// RecordTrace invokes all callbacks with the completed trace in parallel
func (t *byCodeTracer) RecordTrace(trace *Trace) {
	g := new(errgroup.Group)

	for _, callback := range t.callbacks {
		if callback != nil {
			g.Go(func() error {
				callback(trace)
				return nil
			})
		}
	}

	// Callbacks always return nil
	_ = g.Wait()
}

// NewDefaultTracer creates a tracer that logs completed turns to clog
func NewDefaultTracer(ctx context.Context) Tracer {
	logger := clog.FromContext(ctx)

	return ByCode(func(trace *Trace) {
		// Rendering the trace is skipped unless it will be emitted.
		if !logger.Enabled(ctx, slog.LevelDebug) {
			return
		}
		logger.With(
			"session_id", trace.ID,
			"duration_ms", trace.Duration().Milliseconds(),
			"tool_calls", trace.ToolCallCount(),
		).Debug("Agent turn traced", "trace", trace.String())
	})
}
