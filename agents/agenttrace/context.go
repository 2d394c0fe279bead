/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// ExecutionContext provides host-level context for agent turns.
// It is used to enrich spans and metrics and is sent as session metadata.
type ExecutionContext struct {
	Channel    string `json:"channel,omitempty"`     // Where the message came from: "telegram", "slack", "cli"
	UserID     string `json:"user_id,omitempty"`     // Identifier of the requesting user (traces only)
	AgentName  string `json:"agent_name,omitempty"`  // Name of the agent handling the turn
	TurnNumber int    `json:"turn_number,omitempty"` // Turn number for multi-turn conversations (1, 2, 3, ...)
}

// Metadata returns the non-empty fields as session start metadata.
func (e ExecutionContext) Metadata() map[string]any {
	md := make(map[string]any, 4)
	if e.Channel != "" {
		md["channel"] = e.Channel
	}
	if e.UserID != "" {
		md["user_id"] = e.UserID
	}
	if e.AgentName != "" {
		md["agent_name"] = e.AgentName
	}
	if e.TurnNumber != 0 {
		md["turn_number"] = e.TurnNumber
	}
	return md
}

// EnrichAttributes adds execution context attributes to the provided base attributes.
// Only bounded labels are added; user_id stays out of metrics to keep
// cardinality under control and is recorded on spans instead.
func (e ExecutionContext) EnrichAttributes(baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(baseAttrs), len(baseAttrs)+3)
	copy(attrs, baseAttrs)

	if e.Channel != "" {
		attrs = append(attrs, attribute.String("channel", e.Channel))
	}
	if e.AgentName != "" {
		attrs = append(attrs, attribute.String("agent", e.AgentName))
	}
	attrs = append(attrs, attribute.Int("turn", e.TurnNumber))

	return attrs
}

// EnrichFromContext is a metrics.AttributeEnricher reading the execution context from ctx.
func EnrichFromContext(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	return GetExecutionContext(ctx).EnrichAttributes(baseAttrs)
}

// contextKey is used for storing execution context in context.Context
type contextKey string

const executionContextKey contextKey = "execution_context"

// WithExecutionContext adds execution context to the Go context
func WithExecutionContext(ctx context.Context, execCtx ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey, execCtx)
}

// GetExecutionContext retrieves execution context from the Go context
func GetExecutionContext(ctx context.Context) ExecutionContext {
	if val := ctx.Value(executionContextKey); val != nil {
		if execCtx, ok := val.(ExecutionContext); ok {
			return execCtx
		}
	}
	return ExecutionContext{}
}
