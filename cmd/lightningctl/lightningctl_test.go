/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"chainguard.dev/lightningbridge/agents/lightning"
	"chainguard.dev/lightningbridge/agents/lightning/lightningtest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// run executes lightningctl against srv and returns its output.
func run(t *testing.T, srv *lightningtest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LIGHTNING_BRIDGE_URL", srv.URL)
	t.Setenv("ENABLE_AGENT_LIGHTNING", "true")
	t.Setenv("LIGHTNING_BRIDGE_TIMEOUT_MS", "1000")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// startSession opens a session on srv the way an agent would.
func startSession(t *testing.T, srv *lightningtest.Server, id, message string) {
	t.Helper()
	cfg := lightning.DefaultConfig()
	cfg.BridgeURL = srv.URL
	c, err := lightning.New(cfg)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.StartSession(context.Background(), message, lightning.WithSessionID(id))
	require.True(t, ok, "StartSession")
}

func TestHealth(t *testing.T) {
	srv := lightningtest.NewServer(t)

	out, err := run(t, srv, "health")
	require.NoError(t, err)
	require.Contains(t, out, "Collector healthy")
	require.Contains(t, out, srv.URL)
}

func TestHealthUnhealthy(t *testing.T) {
	srv := lightningtest.NewServer(t)
	srv.FailWith("/health", http.StatusServiceUnavailable)

	out, err := run(t, srv, "health")
	require.ErrorIs(t, err, errUnhealthy)
	require.Contains(t, out, "unhealthy")
}

func TestHealthTimeoutFlag(t *testing.T) {
	srv := lightningtest.NewServer(t)
	srv.Delay("/health", 2*time.Second)

	start := time.Now()
	_, err := run(t, srv, "health", "--timeout", "100ms")
	require.ErrorIs(t, err, errUnhealthy)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("elapsed: got = %v, wanted < 1s", elapsed)
	}
}

func TestTimeoutFlagBelowMillisecond(t *testing.T) {
	srv := lightningtest.NewServer(t)

	for _, timeout := range []string{"500us", "-1s"} {
		t.Run(timeout, func(t *testing.T) {
			_, err := run(t, srv, "health", "--timeout", timeout)
			require.ErrorContains(t, err, "--timeout must be at least 1ms")
		})
	}
	require.Empty(t, srv.Requests())
}

func TestURLFlagOverridesEnvironment(t *testing.T) {
	srv := lightningtest.NewServer(t)
	other := lightningtest.NewServer(t)

	_, err := run(t, srv, "health", "--url", other.URL)
	require.NoError(t, err)
	require.Empty(t, srv.Requests())
	require.Len(t, other.RequestsTo("/health"), 1)
}

func TestDisabled(t *testing.T) {
	srv := lightningtest.NewServer(t)

	for _, sub := range []string{"health", "smoke"} {
		t.Run(sub, func(t *testing.T) {
			out, err := run(t, srv, sub, "--disabled")
			require.NoError(t, err)
			require.Contains(t, out, "Tracing is disabled")
		})
	}
	require.Empty(t, srv.Requests())
}

func TestStatsTable(t *testing.T) {
	srv := lightningtest.NewServer(t)
	startSession(t, srv, "session-b", "second")
	startSession(t, srv, "session-a", "first")

	out, err := run(t, srv, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "Tracing enabled: true")
	require.Contains(t, out, "Active sessions: 2")
	require.Contains(t, out, "first")

	a, b := strings.Index(out, "session-a"), strings.Index(out, "session-b")
	if a < 0 || b < 0 || a > b {
		t.Errorf("session rows: got = %q, wanted session-a before session-b", out)
	}
}

func TestStatsJSON(t *testing.T) {
	srv := lightningtest.NewServer(t)
	startSession(t, srv, "session-a", "hello")

	out, err := run(t, srv, "stats", "--output", "json")
	require.NoError(t, err)

	var got lightning.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	want := lightning.Stats{
		Enabled:        true,
		ActiveSessions: 1,
		Sessions: map[string]lightning.SessionInfo{
			"session-a": {StartedAt: got.Sessions["session-a"].StartedAt, Message: "hello"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestStatsYAML(t *testing.T) {
	srv := lightningtest.NewServer(t)
	startSession(t, srv, "session-a", "hello")

	out, err := run(t, srv, "stats", "-o", "yaml")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Equal(t, true, got["enabled"])
	require.Equal(t, 1, got["active_sessions"])
}

func TestStatsErrors(t *testing.T) {
	srv := lightningtest.NewServer(t)

	_, err := run(t, srv, "stats", "--output", "xml")
	require.Error(t, err)
	require.Empty(t, srv.Requests())

	srv.FailWith("/stats", http.StatusInternalServerError)
	_, err = run(t, srv, "stats")
	require.ErrorIs(t, err, errNoStats)
}

func TestSmoke(t *testing.T) {
	srv := lightningtest.NewServer(t)

	out, err := run(t, srv, "smoke", "--message", "hello collector")
	require.NoError(t, err)
	require.Equal(t, 7, strings.Count(out, ": ok"), out)

	var paths []string
	for _, r := range srv.Requests() {
		paths = append(paths, r.Path)
	}
	want := []string{
		"/health", "/session/start", "/tool/trace", "/session/reward", "/session/end", "/stats",
		"/session/start", "/tool/trace", "/session/reward", "/session/end",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("request paths (-want +got):\n%s", diff)
	}
	for _, r := range srv.RequestsTo("/session/start") {
		require.Equal(t, "hello collector", r.Body["message"])
	}
}

func TestSmokeReportsFailedSteps(t *testing.T) {
	srv := lightningtest.NewServer(t)
	srv.FailWith("/tool/trace", http.StatusInternalServerError)

	out, err := run(t, srv, "smoke")
	require.True(t, errors.Is(err, errSmokeFailed), "error: got = %v, wanted %v", err, errSmokeFailed)
	require.Contains(t, out, "trace tool: failed")
	require.Contains(t, out, "end session: ok")
	require.Contains(t, out, "agent turn: ok")
}

func TestSmokeTurnNeedsSession(t *testing.T) {
	srv := lightningtest.NewServer(t)
	srv.RejectWith("/session/start", false)

	out, err := run(t, srv, "smoke")
	require.ErrorIs(t, err, errSmokeFailed)
	require.Contains(t, out, "start session: failed")
	require.Contains(t, out, "agent turn: failed")
}
