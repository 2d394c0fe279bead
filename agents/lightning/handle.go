/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lightning

import (
	"context"
	"maps"
	"sync/atomic"
	"time"

	"chainguard.dev/lightningbridge/agents/lightning/session"
)

// SessionOption configures a session start.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	id       string
	metadata map[string]any
}

// WithSessionID uses id instead of a generated "session-<timestamp>" id.
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) {
		o.id = id
	}
}

// WithMetadata attaches metadata (channel, user id, ...) to the session start.
// Repeated calls merge.
func WithMetadata(md map[string]any) SessionOption {
	return func(o *sessionOptions) {
		if len(md) == 0 {
			return
		}
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(md))
		}
		maps.Copy(o.metadata, md)
	}
}

// Handle is an explicitly owned session. Its methods never read or write
// the client's current-session slot, so one Client can serve any number of
// concurrent Handles.
type Handle struct {
	client    *Client
	session   session.Session
	toolCalls atomic.Int64
	ended     atomic.Bool
}

// Open starts a session and returns a handle for it, or false if the client
// is disabled or the collector did not accept the session.
func (c *Client) Open(ctx context.Context, message string, opts ...SessionOption) (*Handle, bool) {
	s, ok := c.start(ctx, message, opts)
	if !ok {
		return nil, false
	}
	return &Handle{client: c, session: s}, true
}

// ID returns the session id.
func (h *Handle) ID() string {
	return h.session.ID
}

// StartTime returns when the session was started.
func (h *Handle) StartTime() time.Time {
	return h.session.StartTime
}

// ToolCalls returns how many tool traces were attempted on this handle.
func (h *Handle) ToolCalls() int {
	return int(h.toolCalls.Load())
}

// Ended reports whether End was called.
func (h *Handle) Ended() bool {
	return h.ended.Load()
}

// TraceTool records a tool invocation. It returns false without a network
// call once the handle has ended. Failures are not logged.
func (h *Handle) TraceTool(ctx context.Context, toolName string, params map[string]any) bool {
	if h.ended.Load() {
		return false
	}
	n := h.toolCalls.Add(1)
	return h.client.traceTool(ctx, h.session, int(n), toolName, params)
}

// EmitReward sends the outcome of the session. It returns false without a
// network call once the handle has ended.
func (h *Handle) EmitReward(ctx context.Context, success bool, opts ...RewardOption) bool {
	if h.ended.Load() {
		return false
	}
	return h.client.emitReward(ctx, h.session, NewReward(success, opts...))
}

// End ends the session. Only the first call reaches the collector; the
// handle is ended afterwards whatever the outcome.
func (h *Handle) End(ctx context.Context) bool {
	if !h.ended.CompareAndSwap(false, true) {
		return false
	}
	return h.client.end(ctx, h.session)
}

// startRequest is the body of POST /session/start.
type startRequest struct {
	SessionID string         `json:"session_id"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// traceRequest is the body of POST /tool/trace.
type traceRequest struct {
	SessionID  string         `json:"session_id"`
	ToolName   string         `json:"tool_name"`
	Params     map[string]any `json:"params"`
	CallNumber int            `json:"call_number,omitempty"`
}

// endRequest is the body of POST /session/end.
type endRequest struct {
	SessionID string `json:"session_id"`
}
