/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals_test

import (
	"context"
	"testing"

	"chainguard.dev/lightningbridge/agents/evals"
	"github.com/google/go-cmp/cmp"
)

func TestInject(t *testing.T) {
	obs := &mockObserver{}
	callback := evals.Inject(obs, evals.ExactToolCalls(1))

	callback(traceWith("a"))
	callback(traceWith())

	if obs.Total() != 2 {
		t.Errorf("total: got = %d, wanted = 2", obs.Total())
	}
	want := []string{"tool call count: got = 0, wanted = 1"}
	if diff := cmp.Diff(want, obs.failures); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}
}

func TestInjectTagsSession(t *testing.T) {
	obs := &mockObserver{}
	callback := evals.Inject(obs, evals.GradeReward())

	tr := withOutcome(traceWith(), true, 1.1)
	tr.ID = "session-7"
	callback(tr)
	callback(traceWith())

	wantLogs := []string{
		"Grade: 0.80 - session-7: shaped reward 1.10",
		"no outcome recorded, not grading",
	}
	if diff := cmp.Diff(wantLogs, obs.logs); diff != "" {
		t.Errorf("logs (-want +got):\n%s", diff)
	}
}

func TestReportKeepsSession(t *testing.T) {
	next := &mockObserver{}
	report := evals.NewReport(next)
	callback := evals.Inject(report, evals.ExactToolCalls(1))

	tr := traceWith()
	tr.ID = "session-42"
	callback(tr)
	callback(traceWith("a"))

	want := []evals.Finding{{SessionID: "session-42", Message: "tool call count: got = 0, wanted = 1"}}
	if diff := cmp.Diff(want, report.Failures()); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"session-42: tool call count: got = 0, wanted = 1"}, next.failures); diff != "" {
		t.Errorf("forwarded failures (-want +got):\n%s", diff)
	}
	if report.Passed() {
		t.Error("Passed(): got = true, wanted = false")
	}
	if report.Total() != 2 || next.Total() != 2 {
		t.Errorf("total: got = %d/%d, wanted = 2/2", report.Total(), next.Total())
	}
}

func TestReportWithoutNext(t *testing.T) {
	report := evals.NewReport(nil)
	report.Increment()
	report.Log("dropped")
	report.Grade(0.5, "middling")

	if !report.Passed() {
		t.Error("Passed(): got = false, wanted = true")
	}
	want := []evals.Grade{{Score: 0.5, Reasoning: "middling"}}
	if diff := cmp.Diff(want, report.Grades()); diff != "" {
		t.Errorf("grades (-want +got):\n%s", diff)
	}
	if report.Total() != 1 {
		t.Errorf("total: got = %d, wanted = 1", report.Total())
	}
}

func TestSuite(t *testing.T) {
	var created []string
	suite := evals.NewSuite(func(check string) *evals.Report {
		created = append(created, check)
		return evals.NewReport(nil)
	}, map[string]evals.ObservableTraceCallback{
		"tool-calls": evals.ExactToolCalls(1),
		"no-errors":  evals.NoErrors(),
		"reward":     evals.GradeReward(),
	})
	if len(created) != 3 {
		t.Errorf("observers: got = %d, wanted = 3", len(created))
	}

	trace := suite.Tracer().NewTrace(context.Background(), "hello")
	trace.SetSessionID("session-9")
	trace.StartToolCall("read_file", nil).Complete("ok", nil)
	trace.StartToolCall("read_file", nil).Complete("ok", nil)
	trace.RecordOutcome(true, 1.1, 0)
	trace.Complete(nil)

	var names []string
	got := map[string][]evals.Finding{}
	grades := 0
	suite.Each(func(check string, r *evals.Report) {
		names = append(names, check)
		if f := r.Failures(); len(f) > 0 {
			got[check] = f
		}
		for _, g := range r.Grades() {
			grades++
			if g.SessionID != "session-9" {
				t.Errorf("grade session: got = %q, wanted = session-9", g.SessionID)
			}
		}
	})

	if diff := cmp.Diff([]string{"no-errors", "reward", "tool-calls"}, names); diff != "" {
		t.Errorf("check order (-want +got):\n%s", diff)
	}
	want := map[string][]evals.Finding{
		"tool-calls": {{SessionID: "session-9", Message: "tool call count: got = 2, wanted = 1"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
	if grades != 1 {
		t.Errorf("grades: got = %d, wanted = 1", grades)
	}
	if _, ok := suite.Observer("missing"); ok {
		t.Error("Observer(missing): got = true, wanted = false")
	}
}
