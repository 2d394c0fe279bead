/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "chainguard.ai.agents.lightning"

	// MaxParamLength bounds each tool.<param> span attribute.
	MaxParamLength = 200
)

// ToolCall represents a single tool invocation within a trace
type ToolCall struct {
	Number    int            `json:"call_number"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Result    any            `json:"result"`
	Error     error          `json:"error,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	trace     *Trace         // Parent trace for auto-adding on completion
	mu        sync.Mutex     // Protects mutable fields
	span      oteltrace.Span
}

// Trace represents one agent turn from user message to outcome
type Trace struct {
	ID          string           `json:"id"`
	InputPrompt string           `json:"input_prompt"`
	ExecContext ExecutionContext `json:"exec_context,omitempty"`
	ToolCalls   []*ToolCall      `json:"tool_calls"`
	Success     *bool            `json:"success,omitempty"`
	Reward      float64          `json:"reward,omitempty"`
	TokensUsed  int64            `json:"tokens_used,omitempty"`
	Error       error            `json:"error,omitempty"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	tracer      Tracer           // Tracer for auto-recording
	started     int              // Tool calls started, for numbering
	completed   bool
	mu          sync.Mutex // Protects mutable fields
	ctx         context.Context
	span        oteltrace.Span
}

func otelTracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0"))
}

// newTraceWithTracer creates a new trace with the given tracer and prompt
func newTraceWithTracer(ctx context.Context, tracer Tracer, prompt string) *Trace {
	execCtx := GetExecutionContext(ctx)

	attrs := []attribute.KeyValue{attribute.String("agent.prompt", truncate(prompt, MaxParamLength))}
	if execCtx.Channel != "" {
		attrs = append(attrs, attribute.String("channel", execCtx.Channel))
	}
	if execCtx.UserID != "" {
		attrs = append(attrs, attribute.String("user_id", execCtx.UserID))
	}
	if execCtx.AgentName != "" {
		attrs = append(attrs, attribute.String("agent", execCtx.AgentName))
	}
	if execCtx.TurnNumber != 0 {
		attrs = append(attrs, attribute.Int("turn", execCtx.TurnNumber))
	}

	ctx, span := otelTracer().Start(ctx, "lightning.session", oteltrace.WithAttributes(attrs...))

	return &Trace{
		InputPrompt: prompt,
		ExecContext: execCtx,
		ToolCalls:   []*ToolCall{},
		StartTime:   time.Now(),
		tracer:      tracer,
		ctx:         ctx,
		span:        span,
	}
}

// Context returns a context carrying the trace's span, for child work.
func (t *Trace) Context() context.Context {
	return t.ctx
}

// SetSessionID associates the trace with its collector session.
func (t *Trace) SetSessionID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ID = id
	if t.span != nil {
		t.span.SetAttributes(attribute.String("session.id", id))
	}
}

// StartToolCall starts a new tool call and returns it. Calls are numbered
// from 1 in the order they are started.
func (t *Trace) StartToolCall(name string, params map[string]any) *ToolCall {
	t.mu.Lock()
	t.started++
	n := t.started
	t.mu.Unlock()

	_, span := otelTracer().Start(t.ctx, "lightning.tool",
		oteltrace.WithAttributes(ToolAttributes(name, n, params)...))

	return &ToolCall{
		Number:    n,
		Name:      name,
		Params:    params,
		StartTime: time.Now(),
		trace:     t,
		span:      span,
	}
}

// ToolAttributes returns the span attributes for a tool call: tool.name,
// tool.call_number and tool.<param> for each parameter, with values
// stringified and truncated to MaxParamLength.
func ToolAttributes(name string, callNumber int, params map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(params)+2)
	attrs = append(attrs,
		attribute.String("tool.name", name),
		attribute.Int("tool.call_number", callNumber),
	)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String("tool."+k, truncate(fmt.Sprint(params[k]), MaxParamLength)))
	}
	return attrs
}

// Complete marks the tool call as complete and adds it to the parent trace
func (tc *ToolCall) Complete(result any, err error) {
	tc.mu.Lock()
	tc.Result = result
	tc.Error = err
	tc.EndTime = time.Now()
	trace := tc.trace
	span := tc.span
	tc.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	// Auto-add to parent trace
	trace.mu.Lock()
	defer trace.mu.Unlock()
	trace.ToolCalls = append(trace.ToolCalls, tc)
}

// Duration returns the duration of the tool call
func (tc *ToolCall) Duration() time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.EndTime.IsZero() {
		return time.Since(tc.StartTime)
	}
	return tc.EndTime.Sub(tc.StartTime)
}

// RecordOutcome records the turn's outcome and shaped reward on the span.
func (t *Trace) RecordOutcome(success bool, reward float64, tokensUsed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Success = &success
	t.Reward = reward
	t.TokensUsed = tokensUsed
	if t.span != nil {
		t.span.SetAttributes(
			attribute.Bool("task.success", success),
			attribute.Float64("reward", reward),
			attribute.Int64("tokens.used", tokensUsed),
		)
	}
}

// Complete ends the trace and records it with its tracer. Only the first
// call has any effect.
func (t *Trace) Complete(err error) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.Error = err
	t.EndTime = time.Now()
	tracer := t.tracer
	span := t.span
	t.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	// Auto-record with tracer
	if tracer != nil {
		tracer.RecordTrace(t)
	}
}

// ToolCallCount returns the number of completed tool calls.
func (t *Trace) ToolCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ToolCalls)
}

// Duration returns the total duration of the trace
func (t *Trace) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// String returns a structured representation of the trace
func (t *Trace) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder

	var duration time.Duration
	if t.EndTime.IsZero() {
		duration = time.Since(t.StartTime)
	} else {
		duration = t.EndTime.Sub(t.StartTime)
	}

	fmt.Fprintf(&sb, "=== Session %s ===\n", t.ID)
	fmt.Fprintf(&sb, "Message: %q\n", t.InputPrompt)
	fmt.Fprintf(&sb, "Duration: %v\n", duration)

	if len(t.ToolCalls) > 0 {
		fmt.Fprintf(&sb, "\nTool Calls (%d):\n", len(t.ToolCalls))
		for _, tc := range t.ToolCalls {
			fmt.Fprintf(&sb, "  [%d] %s\n", tc.Number, tc.Name)

			// Inline to avoid nested mutex lock
			var tcDuration time.Duration
			if !tc.EndTime.IsZero() {
				tcDuration = tc.EndTime.Sub(tc.StartTime)
			}
			fmt.Fprintf(&sb, "      Duration: %v\n", tcDuration)

			if len(tc.Params) > 0 {
				sb.WriteString("      Params:\n")
				keys := make([]string, 0, len(tc.Params))
				for k := range tc.Params {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(&sb, "        %s: %s\n", k, truncate(fmt.Sprint(tc.Params[k]), MaxParamLength))
				}
			}

			if tc.Error != nil {
				fmt.Fprintf(&sb, "      Error: %v\n", tc.Error)
			} else if tc.Result != nil {
				fmt.Fprintf(&sb, "      Result: %s\n", truncate(fmt.Sprintf("%v", tc.Result), MaxParamLength))
			}
		}
	} else {
		sb.WriteString("\nNo tool calls\n")
	}

	sb.WriteString("\nOutcome:\n")
	switch {
	case t.Error != nil:
		fmt.Fprintf(&sb, "  Error: %v\n", t.Error)
	case t.Success != nil:
		fmt.Fprintf(&sb, "  Success: %t\n  Reward: %.2f\n", *t.Success, t.Reward)
	default:
		sb.WriteString("  Unknown\n")
	}

	return sb.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
