/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package middleware adapts an agent host's turn lifecycle to lightning
sessions.

A host calls StartTurn when a user message arrives, reports each tool
invocation on the returned Turn, and calls Finish with the outcome:

	hooks := middleware.New(client)

	ctx, turn := hooks.StartTurn(ctx, message)
	tools = turn.WrapTools(tools)
	...
	turn.Finish(ctx, middleware.Outcome{Success: true, TokensUsed: 450})

Or, wrapping the whole turn:

	err := hooks.Run(ctx, message, func(ctx context.Context, turn *middleware.Turn) error {
		return agent.Handle(ctx, turn.WrapTools(tools), message)
	})

Tool traces and the reward/end pair are sent from background goroutines
using a context detached from the caller's cancellation, so they never
delay a tool or the host's reply. Each call is bounded by the client's
timeout. Wait blocks until all of them have finished.

Every turn is also recorded locally as an agenttrace.Trace, with OpenTelemetry
spans, whether or not the collector accepted the session.
*/
package middleware
