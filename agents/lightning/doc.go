/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package lightning is a best-effort client for the lightning collector, the
local HTTP service that records agent sessions, tool invocations and outcome
rewards for later learning.

# Guarantees

Tracing must never change how the host agent behaves:

  - No method returns an error or panics because of the collector. Every
    failure collapses to false (or a nil snapshot).
  - Every call makes at most one HTTP request, bounded by the configured timeout.
  - A disabled client returns immediately without any network call.
  - Nothing is retried or buffered. Events sent while the collector is down are lost.

Failed session starts, rewards and ends are logged through clog. Failed tool
traces are not logged, since they fire many times per turn. Health and stats
probes are silent.

# Configuration

	LIGHTNING_BRIDGE_URL         collector base URL (default http://localhost:8765)
	ENABLE_AGENT_LIGHTNING       feature flag (default true)
	LIGHTNING_BRIDGE_TIMEOUT_MS  per-call timeout in milliseconds (default 5000)

# Usage

Build one client at the composition root and pass it to collaborators:

	client, err := lightning.NewFromEnv(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "creating lightning client: %v", err)
	}

The slot API keeps one current session per client:

	id, ok := client.StartSession(ctx, "Summarize the README")
	client.TraceTool(ctx, "read", map[string]any{"path": "README.md"})
	client.EmitReward(ctx, true, lightning.WithTokensUsed(450), lightning.WithExpectedTokens(500))
	client.EndSession(ctx)

Handles carry their own session and are safe for concurrent turns:

	h, ok := client.Open(ctx, message, lightning.WithMetadata(map[string]any{"channel": "telegram"}))
	if ok {
		defer h.End(ctx)
		h.TraceTool(ctx, "web_search", map[string]any{"query": "agent lightning"})
		h.EmitReward(ctx, true)
	}

Most hosts should use the middleware package instead of calling the client directly.
*/
package lightning
