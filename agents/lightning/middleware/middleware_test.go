/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"chainguard.dev/lightningbridge/agents/agenttrace"
	"chainguard.dev/lightningbridge/agents/lightning"
	"chainguard.dev/lightningbridge/agents/lightning/lightningtest"
	"chainguard.dev/lightningbridge/agents/lightning/middleware"
	"chainguard.dev/lightningbridge/agents/toolcall"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// recorder collects completed traces.
type recorder struct {
	mu     sync.Mutex
	traces []*agenttrace.Trace
}

func (r *recorder) record(trace *agenttrace.Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, trace)
}

func (r *recorder) all() []*agenttrace.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*agenttrace.Trace(nil), r.traces...)
}

func newHooks(t *testing.T, srv *lightningtest.Server, enabled bool) (*middleware.Hooks, *recorder) {
	t.Helper()
	cfg := lightning.DefaultConfig()
	cfg.BridgeURL = srv.URL
	cfg.TimeoutMS = 1000
	cfg.Enabled = enabled
	client, err := lightning.New(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	rec := &recorder{}
	hooks := middleware.New(client, middleware.WithTracer(agenttrace.ByCode(rec.record)))
	t.Cleanup(hooks.Wait)
	return hooks, rec
}

func paths(reqs []lightningtest.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Path)
	}
	return out
}

func TestTurnLifecycle(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, rec := newHooks(t, srv, true)

	ctx := agenttrace.WithExecutionContext(context.Background(), agenttrace.ExecutionContext{
		Channel: "telegram",
		UserID:  "u-1",
	})
	ctx, turn := hooks.StartTurn(ctx, "Research agent lightning")
	require.NotEmpty(t, turn.SessionID())

	turn.ToolCall(ctx, "web_search", map[string]any{"query": "agent lightning"}).Complete("results", nil)
	turn.ToolCall(ctx, "read_file", map[string]any{"path": "/tmp/a"}).Complete("contents", nil)
	hooks.Wait()

	turn.Finish(ctx, middleware.Outcome{Success: true, TokensUsed: 450, ExpectedTokens: 500})
	hooks.Wait()

	want := []string{"/session/start", "/tool/trace", "/tool/trace", "/session/reward", "/session/end"}
	if diff := cmp.Diff(want, paths(srv.Requests())); diff != "" {
		t.Errorf("request paths (-want +got):\n%s", diff)
	}

	start := srv.RequestsTo("/session/start")[0].Body
	wantMD := map[string]any{"channel": "telegram", "user_id": "u-1"}
	if diff := cmp.Diff(wantMD, start["metadata"]); diff != "" {
		t.Errorf("start metadata (-want +got):\n%s", diff)
	}

	reward := srv.RequestsTo("/session/reward")[0].Body
	require.Equal(t, turn.SessionID(), reward["session_id"])
	require.Equal(t, true, reward["success"])
	require.Equal(t, float64(450), reward["tokens_used"])
	require.Equal(t, float64(500), reward["expected_tokens"])
	require.Contains(t, reward, "duration")

	traces := rec.all()
	require.Len(t, traces, 1)
	require.Equal(t, turn.SessionID(), traces[0].ID)
	require.Equal(t, 2, traces[0].ToolCallCount())
	require.NotNil(t, traces[0].Success)
	require.True(t, *traces[0].Success)
	require.InDelta(t, 1.2, traces[0].Reward, 1e-9)
}

func TestFinishOnce(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, rec := newHooks(t, srv, true)

	ctx, turn := hooks.StartTurn(context.Background(), "hi")
	turn.Finish(ctx, middleware.Outcome{Success: true})
	turn.Finish(ctx, middleware.Outcome{Success: false})
	hooks.Wait()

	require.Len(t, srv.RequestsTo("/session/reward"), 1)
	require.Len(t, srv.RequestsTo("/session/end"), 1)
	require.Len(t, rec.all(), 1)

	// Tool calls after the turn finished stay local.
	turn.ToolCall(ctx, "late", nil).Complete(nil, nil)
	hooks.Wait()
	require.Empty(t, srv.RequestsTo("/tool/trace"))
}

func TestStartFailureTracesLocally(t *testing.T) {
	srv := lightningtest.NewServer(t)
	srv.FailWith("/session/start", http.StatusInternalServerError)
	hooks, rec := newHooks(t, srv, true)

	ctx, turn := hooks.StartTurn(context.Background(), "hi")
	require.Empty(t, turn.SessionID())

	turn.ToolCall(ctx, "search", nil).Complete(nil, nil)
	turn.Finish(ctx, middleware.Outcome{Success: true})
	hooks.Wait()

	if diff := cmp.Diff([]string{"/session/start"}, paths(srv.Requests())); diff != "" {
		t.Errorf("request paths (-want +got):\n%s", diff)
	}
	traces := rec.all()
	require.Len(t, traces, 1)
	require.Equal(t, 1, traces[0].ToolCallCount())
}

func TestDisabledClientSendsNothing(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, rec := newHooks(t, srv, false)

	err := hooks.Run(context.Background(), "hi", func(ctx context.Context, turn *middleware.Turn) error {
		turn.ToolCall(ctx, "search", nil).Complete(nil, nil)
		return nil
	})
	require.NoError(t, err)
	hooks.Wait()

	require.Empty(t, srv.Requests())
	require.Len(t, rec.all(), 1)
}

func TestToolCallDoesNotBlock(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, _ := newHooks(t, srv, true)

	ctx, turn := hooks.StartTurn(context.Background(), "hi")
	srv.Delay("/tool/trace", 300*time.Millisecond)

	start := time.Now()
	turn.ToolCall(ctx, "slow", nil).Complete(nil, nil)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("ToolCall() elapsed: got = %v, wanted < 100ms", elapsed)
	}

	hooks.Wait()
	require.Len(t, srv.RequestsTo("/tool/trace"), 1)
}

func TestFinishSurvivesCancellation(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, _ := newHooks(t, srv, true)

	ctx, cancel := context.WithCancel(context.Background())
	ctx, turn := hooks.StartTurn(ctx, "hi")
	cancel()

	turn.Finish(ctx, middleware.Outcome{Success: true})
	hooks.Wait()

	require.Len(t, srv.RequestsTo("/session/reward"), 1)
	require.Len(t, srv.RequestsTo("/session/end"), 1)
}

func TestRunReturnsHostError(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, rec := newHooks(t, srv, true)

	hostErr := errors.New("model unavailable")
	err := hooks.Run(context.Background(), "hi", func(context.Context, *middleware.Turn) error {
		return hostErr
	})
	require.Same(t, hostErr, err)
	hooks.Wait()

	reward := srv.RequestsTo("/session/reward")
	require.Len(t, reward, 1)
	require.Equal(t, false, reward[0].Body["success"])
	require.Len(t, srv.RequestsTo("/session/end"), 1)

	traces := rec.all()
	require.Len(t, traces, 1)
	require.ErrorIs(t, traces[0].Error, hostErr)
}

func TestRunHostFinishWins(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, _ := newHooks(t, srv, true)

	err := hooks.Run(context.Background(), "hi", func(ctx context.Context, turn *middleware.Turn) error {
		turn.Finish(ctx, middleware.Outcome{Success: true, UserRating: 5})
		return nil
	})
	require.NoError(t, err)
	hooks.Wait()

	reward := srv.RequestsTo("/session/reward")
	require.Len(t, reward, 1)
	require.Equal(t, float64(5), reward[0].Body["user_rating"])
}

func TestRunPropagatesPanic(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, _ := newHooks(t, srv, true)

	require.PanicsWithValue(t, "boom", func() {
		_ = hooks.Run(context.Background(), "hi", func(context.Context, *middleware.Turn) error {
			panic("boom")
		})
	})
	hooks.Wait()

	reward := srv.RequestsTo("/session/reward")
	require.Len(t, reward, 1)
	require.Equal(t, false, reward[0].Body["success"])
	require.Len(t, srv.RequestsTo("/session/end"), 1)
}

func TestWrapTools(t *testing.T) {
	srv := lightningtest.NewServer(t)
	hooks, rec := newHooks(t, srv, true)

	tools := toolcall.NewTools(
		toolcall.Tool{
			Def: toolcall.Definition{
				Name:       "read_file",
				Parameters: []toolcall.Parameter{{Name: "path", Type: "string", Required: true}},
			},
			Handler: func(_ context.Context, call toolcall.ToolCall) map[string]any {
				path, errResp := toolcall.Param[string](call, "path")
				if errResp != nil {
					return errResp
				}
				return map[string]any{"content": "contents of " + path}
			},
		},
		toolcall.Tool{
			Def: toolcall.Definition{Name: "broken"},
			Handler: func(context.Context, toolcall.ToolCall) map[string]any {
				return map[string]any{"error": "disk full"}
			},
		},
	)

	ctx, turn := hooks.StartTurn(context.Background(), "hi")
	wrapped := turn.WrapTools(tools)

	got := wrapped.Call(ctx, toolcall.ToolCall{ID: "1", Name: "read_file", Args: map[string]any{"path": "/tmp/a"}})
	require.Equal(t, "contents of /tmp/a", got["content"])
	got = wrapped.Call(ctx, toolcall.ToolCall{ID: "2", Name: "broken"})
	require.Equal(t, "disk full", got["error"])

	hooks.Wait()
	turn.Finish(ctx, middleware.Outcome{Success: true})
	hooks.Wait()

	traced := map[string]map[string]any{}
	for _, r := range srv.RequestsTo("/tool/trace") {
		name, _ := r.Body["tool_name"].(string)
		params, _ := r.Body["params"].(map[string]any)
		traced[name] = params
	}
	want := map[string]map[string]any{
		"read_file": {"path": "/tmp/a"},
		"broken":    {},
	}
	if diff := cmp.Diff(want, traced); diff != "" {
		t.Errorf("traced tools (-want +got):\n%s", diff)
	}

	traces := rec.all()
	require.Len(t, traces, 1)
	var failed int
	for _, tc := range traces[0].ToolCalls {
		if tc.Error != nil {
			failed++
		}
	}
	require.Equal(t, 1, failed)
}
