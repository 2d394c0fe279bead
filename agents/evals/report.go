/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"sync"
	"sync/atomic"
)

// Finding is a failed check on one turn.
type Finding struct {
	// SessionID is the collector session of the turn, empty when the turn
	// never reached the collector.
	SessionID string
	Message   string
}

func (f Finding) String() string {
	if f.SessionID == "" {
		return f.Message
	}
	return f.SessionID + ": " + f.Message
}

// Grade is the score one turn received.
type Grade struct {
	SessionID string
	Score     float64
	Reasoning string
}

// Report keeps the findings and grades of one check in memory. Verdicts
// are forwarded to next, when set, with the session id folded into the text.
type Report struct {
	next  Observer
	turns atomic.Int64

	mu       sync.Mutex
	findings []Finding
	grades   []Grade
}

var (
	_ Observer        = (*Report)(nil)
	_ sessionObserver = (*Report)(nil)
)

// NewReport creates a Report forwarding to next, which may be nil.
func NewReport(next Observer) *Report {
	return &Report{next: next}
}

// Fail records a finding with no session.
func (r *Report) Fail(msg string) {
	r.failSession("", msg)
}

// Log forwards msg; reports do not keep notes.
func (r *Report) Log(msg string) {
	if r.next != nil {
		r.next.Log(msg)
	}
}

// Grade records a grade with no session.
func (r *Report) Grade(score float64, reasoning string) {
	r.gradeSession("", score, reasoning)
}

// Increment counts one more graded turn.
func (r *Report) Increment() {
	r.turns.Add(1)
	if r.next != nil {
		r.next.Increment()
	}
}

// Total returns the number of turns this report has seen.
func (r *Report) Total() int64 {
	return r.turns.Load()
}

func (r *Report) failSession(sessionID, msg string) {
	f := Finding{SessionID: sessionID, Message: msg}
	if r.next != nil {
		r.next.Fail(f.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
}

func (r *Report) gradeSession(sessionID string, score float64, reasoning string) {
	if r.next != nil {
		r.next.Grade(score, Finding{SessionID: sessionID, Message: reasoning}.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.grades = append(r.grades, Grade{SessionID: sessionID, Score: score, Reasoning: reasoning})
}

// Passed reports whether no finding was recorded.
func (r *Report) Passed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.findings) == 0
}

// Failures returns a copy of the findings so far.
func (r *Report) Failures() []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Finding(nil), r.findings...)
}

// Grades returns a copy of the grades so far.
func (r *Report) Grades() []Grade {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Grade(nil), r.grades...)
}
