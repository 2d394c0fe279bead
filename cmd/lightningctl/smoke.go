/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chainguard.dev/lightningbridge/agents/evals"
	"chainguard.dev/lightningbridge/agents/lightning"
	"chainguard.dev/lightningbridge/agents/lightning/middleware"
	"chainguard.dev/lightningbridge/agents/toolcall"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

const probeTool = "lightningctl_probe"

var errSmokeFailed = errors.New("smoke test failed")

// smokeStep is one collector call of the round trip.
type smokeStep struct {
	name string
	run  func(ctx context.Context, c *lightning.Client) bool
}

func smokeSteps(message string) []smokeStep {
	return []smokeStep{{
		name: "health",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return c.HealthCheck(ctx)
		},
	}, {
		name: "start session",
		run: func(ctx context.Context, c *lightning.Client) bool {
			_, ok := c.StartSession(ctx, message, lightning.WithMetadata(map[string]any{"source": "lightningctl"}))
			return ok
		},
	}, {
		name: "trace tool",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return c.TraceTool(ctx, probeTool, map[string]any{"step": "trace"})
		},
	}, {
		name: "emit reward",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return c.EmitReward(ctx, true, lightning.WithTokensUsed(1), lightning.WithExpectedTokens(10))
		},
	}, {
		name: "end session",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return c.EndSession(ctx)
		},
	}, {
		name: "stats",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return c.Stats(ctx) != nil
		},
	}, {
		name: "agent turn",
		run: func(ctx context.Context, c *lightning.Client) bool {
			return runTurn(ctx, c, message)
		},
	}}
}

// runTurn drives one turn through the middleware, with a traced probe tool,
// and grades the local trace.
func runTurn(ctx context.Context, client *lightning.Client, message string) bool {
	suite := evals.NewSuite(func(check string) *evals.Report {
		return evals.NewReport(evals.NewMetricsObserver("lightningctl/smoke/" + check))
	}, map[string]evals.ObservableTraceCallback{
		"tool-calls": evals.ExactToolCalls(1),
		"no-errors":  evals.NoErrors(),
		"succeeded":  evals.Succeeded(),
		"reward":     evals.GradeReward(),
	})
	hooks := middleware.New(client, middleware.WithTracer(suite.Tracer()))

	probe := toolcall.Tool{
		Def: toolcall.Definition{Name: probeTool, Description: "Answers ok"},
		Handler: func(context.Context, toolcall.ToolCall) map[string]any {
			return map[string]any{"ok": true}
		},
	}

	started := false
	_ = hooks.Run(ctx, message, func(ctx context.Context, turn *middleware.Turn) error {
		started = turn.SessionID() != ""
		turn.WrapTool(probe).Call(ctx, toolcall.ToolCall{Name: probeTool, Args: map[string]any{"step": "turn"}})
		// Keep the trace ahead of the reward on the wire.
		hooks.Wait()
		turn.Finish(ctx, middleware.Outcome{Success: true, TokensUsed: 1, ExpectedTokens: 10})
		return nil
	})
	hooks.Wait()

	passed := started
	suite.Each(func(check string, r *evals.Report) {
		for _, f := range r.Failures() {
			passed = false
			clog.FromContext(ctx).
				With("check", check).
				With("session_id", f.SessionID).
				Warn("Turn evaluation failed", "failure", f.Message)
		}
	})
	return passed
}

func newSmokeCmd(opts *rootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a full session round trip against the collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if !client.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("Tracing is disabled, nothing to check"))
				return nil
			}
			return runSmoke(cmd.Context(), cmd.OutOrStdout(), client, smokeSteps(message))
		},
	}
	cmd.Flags().StringVar(&message, "message", "lightningctl smoke test", "message sent with the session start")
	return cmd
}

// runSmoke runs every step, reporting each, and fails if any step failed.
func runSmoke(ctx context.Context, w io.Writer, client *lightning.Client, steps []smokeStep) error {
	failed := 0
	for i, step := range steps {
		if step.run(ctx, client) {
			fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("[%d/%d] %s: ok", i+1, len(steps), step.name)))
			continue
		}
		failed++
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("[%d/%d] %s: failed", i+1, len(steps), step.name)))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d steps", errSmokeFailed, failed, len(steps))
	}
	return nil
}
