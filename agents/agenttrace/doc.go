/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace records agent turns locally as OpenTelemetry spans while
they are forwarded to the lightning collector.

# Overview

  - ExecutionContext: host-level metadata (channel, user, agent, turn number) carried in context.Context
  - Trace: one agent turn from user message to outcome, keyed by its session id
  - ToolCall: one tool invocation within a trace
  - Tracer: creates traces and receives them when they complete

Each trace opens a "lightning.session" span and each tool call a child
"lightning.tool" span carrying tool.name, tool.call_number and one
tool.<param> attribute per parameter, truncated to 200 characters.

# Usage

	ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{
		Channel:    "telegram",
		TurnNumber: 1,
	})

	tracer := agenttrace.ByCode(func(trace *agenttrace.Trace) {
		log.Printf("Turn %s took %v", trace.ID, trace.Duration())
	})
	ctx = agenttrace.WithTracer(ctx, tracer)

	trace := agenttrace.StartTrace(ctx, "Research agent lightning")
	trace.SetSessionID("session-1760000000000")
	tc := trace.StartToolCall("web_search", map[string]any{"query": "agent lightning"})
	tc.Complete(nil, nil)
	trace.RecordOutcome(true, 1.1, 450)
	trace.Complete(nil)
*/
package agenttrace
