/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"slices"

	"chainguard.dev/lightningbridge/agents/agenttrace"
)

// Observer receives the verdicts one check reaches about completed turns.
type Observer interface {
	// Fail reports that the turn did not meet the check.
	Fail(string)
	// Log records a note about the turn.
	Log(string)
	// Grade scores the turn between 0.0 and 1.0.
	Grade(score float64, reasoning string)
	// Increment counts one more graded turn.
	Increment()
	// Total returns the number of graded turns.
	Total() int64
}

// ObservableTraceCallback is a check over one completed turn.
type ObservableTraceCallback func(Observer, *agenttrace.Trace)

// sessionObserver is implemented by observers that keep the collector
// session apart from the message.
type sessionObserver interface {
	failSession(sessionID, msg string)
	gradeSession(sessionID string, score float64, reasoning string)
}

// Inject turns a check into a TraceCallback reporting to obs. Verdicts on a
// turn that reached the collector carry its session id.
func Inject(obs Observer, callback ObservableTraceCallback) agenttrace.TraceCallback {
	return func(trace *agenttrace.Trace) {
		obs.Increment()
		callback(turnObserver{Observer: obs, sessionID: trace.ID}, trace)
	}
}

// turnObserver scopes an Observer to the turn being checked.
type turnObserver struct {
	Observer
	sessionID string
}

func (o turnObserver) tag(msg string) string {
	if o.sessionID == "" {
		return msg
	}
	return o.sessionID + ": " + msg
}

func (o turnObserver) Fail(msg string) {
	if so, ok := o.Observer.(sessionObserver); ok {
		so.failSession(o.sessionID, msg)
		return
	}
	o.Observer.Fail(o.tag(msg))
}

func (o turnObserver) Log(msg string) {
	o.Observer.Log(o.tag(msg))
}

func (o turnObserver) Grade(score float64, reasoning string) {
	if so, ok := o.Observer.(sessionObserver); ok {
		so.gradeSession(o.sessionID, score, reasoning)
		return
	}
	o.Observer.Grade(score, o.tag(reasoning))
}

// Suite is a fixed set of named checks, each reporting to its own observer.
type Suite[O Observer] struct {
	names     []string
	checks    map[string]ObservableTraceCallback
	observers map[string]O
}

// NewSuite creates a suite, calling newObserver once per check name.
func NewSuite[O Observer](newObserver func(check string) O, checks map[string]ObservableTraceCallback) *Suite[O] {
	s := &Suite[O]{
		checks:    checks,
		observers: make(map[string]O, len(checks)),
	}
	for name := range checks {
		s.names = append(s.names, name)
		s.observers[name] = newObserver(name)
	}
	slices.Sort(s.names)
	return s
}

// Tracer returns a tracer that runs every check, in parallel, as each turn
// completes. Pass it to middleware.WithTracer.
func (s *Suite[O]) Tracer() agenttrace.Tracer {
	callbacks := make([]agenttrace.TraceCallback, 0, len(s.names))
	for _, name := range s.names {
		callbacks = append(callbacks, Inject(s.observers[name], s.checks[name]))
	}
	return agenttrace.ByCode(callbacks...)
}

// Observer returns the observer of the named check.
func (s *Suite[O]) Observer(check string) (O, bool) {
	obs, ok := s.observers[check]
	return obs, ok
}

// Each calls fn for every check, sorted by name.
func (s *Suite[O]) Each(fn func(check string, obs O)) {
	for _, name := range s.names {
		fn(name, s.observers[name])
	}
}
