/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package evals grades completed agent turns locally.

Checks are ObservableTraceCallback functions over an agenttrace.Trace that
report problems to an Observer. They plug into any agenttrace.Tracer, so a
host using the lightning middleware can grade each turn as it finishes,
independently of what the collector learns from the reward signal.

# Observers

  - MetricsObserver: exports evaluation, failure and grade Prometheus series per namespace
  - Report: keeps findings and grades in memory, each tied to the turn's collector session
  - Suite: gives each named check its own observer and builds the tracer that runs them

Verdicts on a turn that reached the collector carry its session id, so a
failure can be matched against what the collector recorded.

# Usage

	suite := evals.NewSuite(func(check string) *evals.Report {
		return evals.NewReport(evals.NewMetricsObserver(check))
	}, map[string]evals.ObservableTraceCallback{
		"no-errors":  evals.NoErrors(),
		"tool-calls": evals.RangeToolCalls(1, 5),
		"reward":     evals.GradeReward(),
	})
	hooks := middleware.New(client, middleware.WithTracer(suite.Tracer()))
*/
package evals
