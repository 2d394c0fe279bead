/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package middleware

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"chainguard.dev/lightningbridge/agents/agenttrace"
	"chainguard.dev/lightningbridge/agents/lightning"
	"chainguard.dev/lightningbridge/agents/metrics"
	"chainguard.dev/lightningbridge/agents/toolcall"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Hooks translates host turn events into lightning protocol calls.
type Hooks struct {
	client *lightning.Client
	tracer agenttrace.Tracer
	group  errgroup.Group
}

// Option configures Hooks.
type Option func(*Hooks)

// WithTracer records local turn traces with tracer instead of the tracer
// found in the turn's context.
func WithTracer(tracer agenttrace.Tracer) Option {
	return func(h *Hooks) {
		h.tracer = tracer
	}
}

// New creates Hooks sending to client.
func New(client *lightning.Client, opts ...Option) *Hooks {
	h := &Hooks{client: client}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewFromEnv creates Hooks around a client configured from the environment.
// Session metrics are labelled with the channel, agent and turn of the
// agenttrace.ExecutionContext found in each call's context.
func NewFromEnv(ctx context.Context, opts ...Option) (*Hooks, error) {
	m := metrics.NewSession("chainguard.ai.agents.lightning")
	m.SetAttributeEnricher(agenttrace.EnrichFromContext)

	client, err := lightning.NewFromEnv(ctx, lightning.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("creating lightning client: %w", err)
	}
	return New(client, opts...), nil
}

// Client returns the underlying protocol client.
func (h *Hooks) Client() *lightning.Client {
	return h.client
}

// Wait blocks until every background trace, reward and end call has finished.
// It must not race with new turns being started or finished.
func (h *Hooks) Wait() {
	_ = h.group.Wait()
}

// async runs fn in the background with a context that keeps ctx's values
// but not its cancellation.
func (h *Hooks) async(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	h.group.Go(func() error {
		fn(detached)
		return nil
	})
}

// Turn is one agent turn: a user message, its tool calls and an outcome.
type Turn struct {
	hooks    *Hooks
	handle   *lightning.Handle
	trace    *agenttrace.Trace
	finished atomic.Bool
}

// StartTurn starts a session for message and returns a context carrying the
// turn's span. The session start blocks for at most the client timeout; if it
// fails the turn is still traced locally and its tool calls are not sent.
// Execution context metadata in ctx is sent with the session start.
func (h *Hooks) StartTurn(ctx context.Context, message string) (context.Context, *Turn) {
	tracer := h.tracer
	if tracer == nil {
		tracer = agenttrace.TracerFromContext(ctx)
	}
	trace := tracer.NewTrace(ctx, message)

	md := agenttrace.GetExecutionContext(ctx).Metadata()
	handle, ok := h.client.Open(trace.Context(), message, lightning.WithMetadata(md))
	if ok {
		trace.SetSessionID(handle.ID())
	} else if h.client.Enabled() {
		clog.FromContext(ctx).Debug("Lightning session not started, tracing turn locally")
	}

	return trace.Context(), &Turn{
		hooks:  h,
		handle: handle,
		trace:  trace,
	}
}

// SessionID returns the collector session id, or "" if no session was started.
func (t *Turn) SessionID() string {
	if t.handle == nil {
		return ""
	}
	return t.handle.ID()
}

// Trace returns the local trace of the turn.
func (t *Turn) Trace() *agenttrace.Trace {
	return t.trace
}

// ToolCall records a tool invocation. The collector trace is sent in the
// background; the returned call should be completed with the tool's result.
func (t *Turn) ToolCall(ctx context.Context, name string, params map[string]any) *agenttrace.ToolCall {
	params = maps.Clone(params)
	tc := t.trace.StartToolCall(name, params)

	if t.handle != nil && !t.finished.Load() {
		handle := t.handle
		t.hooks.async(ctx, func(ctx context.Context) {
			handle.TraceTool(ctx, name, params)
		})
	}
	return tc
}

// WrapTool returns tool with its handler traced on this turn. A response
// carrying an "error" key completes the tool call with that error.
func (t *Turn) WrapTool(tool toolcall.Tool) toolcall.Tool {
	next := tool.Handler
	if next == nil {
		return tool
	}
	tool.Handler = func(ctx context.Context, call toolcall.ToolCall) map[string]any {
		tc := t.ToolCall(ctx, call.Name, call.Args)
		resp := next(ctx, call)

		var err error
		if e, ok := resp["error"]; ok {
			err = fmt.Errorf("%v", e)
		}
		tc.Complete(resp, err)
		return resp
	}
	return tool
}

// WrapTools wraps every tool in tools.
func (t *Turn) WrapTools(tools toolcall.Tools) toolcall.Tools {
	out := make(toolcall.Tools, len(tools))
	for name, tool := range tools {
		out[name] = t.WrapTool(tool)
	}
	return out
}

// Outcome describes how a turn ended. Zero-valued optional fields are not
// sent.
type Outcome struct {
	Success bool
	// Err is the host's error, if any. It marks the local trace as failed.
	Err            error
	TokensUsed     int64
	ExpectedTokens int64
	// Duration overrides the time since the session started.
	Duration time.Duration
	// UserRating is feedback on a 1-5 scale.
	UserRating int
}

func (o Outcome) rewardOptions() []lightning.RewardOption {
	var opts []lightning.RewardOption
	if o.TokensUsed > 0 {
		opts = append(opts, lightning.WithTokensUsed(o.TokensUsed))
	}
	if o.ExpectedTokens > 0 {
		opts = append(opts, lightning.WithExpectedTokens(o.ExpectedTokens))
	}
	if o.Duration > 0 {
		opts = append(opts, lightning.WithDuration(o.Duration))
	}
	if o.UserRating != 0 {
		opts = append(opts, lightning.WithUserRating(o.UserRating))
	}
	return opts
}

// Finish records the outcome and ends the turn: the reward then the session
// end are sent in the background, in that order. Only the first call has
// any effect.
func (t *Turn) Finish(ctx context.Context, outcome Outcome) {
	if !t.finished.CompareAndSwap(false, true) {
		return
	}

	opts := outcome.rewardOptions()
	reward := lightning.NewReward(outcome.Success, opts...)
	if reward.Duration == nil {
		d := t.trace.Duration()
		reward.Duration = &d
	}
	t.trace.RecordOutcome(outcome.Success, reward.Score(), outcome.TokensUsed)
	t.trace.Complete(outcome.Err)

	if t.handle == nil {
		return
	}
	handle := t.handle
	t.hooks.async(ctx, func(ctx context.Context) {
		handle.EmitReward(ctx, outcome.Success, opts...)
		handle.End(ctx)
	})
}

// Run wraps a whole turn: it starts the turn, runs fn, and finishes the turn
// with success when fn returns nil. fn's error is returned unchanged, and a
// panic in fn finishes the turn as a failure before propagating.
func (h *Hooks) Run(ctx context.Context, message string, fn func(context.Context, *Turn) error) (err error) {
	ctx, turn := h.StartTurn(ctx, message)
	defer func() {
		if r := recover(); r != nil {
			turn.Finish(ctx, Outcome{Err: fmt.Errorf("panic: %v", r)})
			panic(r)
		}
		turn.Finish(ctx, Outcome{Success: err == nil, Err: err})
	}()
	return fn(ctx, turn)
}
