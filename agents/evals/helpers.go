/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"fmt"
	"maps"
	"sort"

	"chainguard.dev/lightningbridge/agents/agenttrace"
)

// Reward bounds used to normalise a shaped reward into a 0.0-1.0 grade:
// a failed, slow turn rated 1 scores -0.9 and a successful, fast, frugal
// turn rated 5 scores 1.6.
const (
	minReward = -0.9
	maxReward = 1.6
)

// ExactToolCalls validates the trace has exactly n tool calls.
func ExactToolCalls(n int) ObservableTraceCallback {
	return RangeToolCalls(n, n)
}

// MinimumNToolCalls validates the trace has at least n tool calls.
func MinimumNToolCalls(n int) ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		if got := trace.ToolCallCount(); got < n {
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted >= %d", got, n))
		}
	}
}

// MaximumNToolCalls validates the trace has at most n tool calls.
func MaximumNToolCalls(n int) ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		if got := trace.ToolCallCount(); got > n {
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted <= %d", got, n))
		}
	}
}

// RangeToolCalls validates the trace has between min and max tool calls (inclusive).
func RangeToolCalls(min, max int) ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		got := trace.ToolCallCount()
		switch {
		case min == max && got != min:
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted = %d", got, min))
		case got < min || got > max:
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted = %d..%d", got, min, max))
		}
	}
}

// OnlyToolCalls validates the trace only uses the specified tool names.
func OnlyToolCalls(toolNames ...string) ObservableTraceCallback {
	allowed := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		allowed[name] = struct{}{}
	}

	return func(o Observer, trace *agenttrace.Trace) {
		for _, tc := range trace.ToolCalls {
			if _, ok := allowed[tc.Name]; !ok {
				o.Fail(fmt.Sprintf("unexpected tool call %q, only allowed: %v", tc.Name, toolNames))
				return
			}
		}
	}
}

// RequiredToolCalls validates the trace uses all of the specified tool names at least once.
func RequiredToolCalls(toolNames ...string) ObservableTraceCallback {
	baseRequired := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		baseRequired[name] = struct{}{}
	}

	return func(o Observer, trace *agenttrace.Trace) {
		required := maps.Clone(baseRequired)
		for _, tc := range trace.ToolCalls {
			delete(required, tc.Name)
		}

		if len(required) > 0 {
			missing := make([]string, 0, len(required))
			for name := range required {
				missing = append(missing, name)
			}
			sort.Strings(missing)
			o.Fail(fmt.Sprintf("missing required tool calls: %v", missing))
		}
	}
}

// NoErrors validates neither the turn nor any of its tool calls failed.
func NoErrors() ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		if trace.Error != nil {
			o.Fail(fmt.Sprintf("trace error: got = %v, wanted = nil", trace.Error))
			return
		}
		for _, tc := range trace.ToolCalls {
			if tc.Error != nil {
				o.Fail(fmt.Sprintf("tool call %s error: got = %v, wanted = nil", tc.Name, tc.Error))
				return
			}
		}
	}
}

// Succeeded validates the turn recorded a successful outcome.
func Succeeded() ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		switch {
		case trace.Success == nil:
			o.Fail("outcome: got = none, wanted = success")
		case !*trace.Success:
			o.Fail("outcome: got = failure, wanted = success")
		}
	}
}

// MinimumReward validates the turn's shaped reward is at least min.
func MinimumReward(min float64) ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		if trace.Success == nil {
			o.Fail("reward: got = none, wanted = recorded")
			return
		}
		if trace.Reward < min {
			o.Fail(fmt.Sprintf("reward: got = %.2f, wanted >= %.2f", trace.Reward, min))
		}
	}
}

// GradeReward grades the turn with its shaped reward scaled to 0.0-1.0.
// Turns without an outcome are not graded.
func GradeReward() ObservableTraceCallback {
	return func(o Observer, trace *agenttrace.Trace) {
		if trace.Success == nil {
			o.Log("no outcome recorded, not grading")
			return
		}
		score := (trace.Reward - minReward) / (maxReward - minReward)
		score = min(max(score, 0), 1)
		o.Grade(score, fmt.Sprintf("shaped reward %.2f", trace.Reward))
	}
}
