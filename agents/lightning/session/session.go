/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Session identifies one tracked unit of agent work.
type Session struct {
	ID        string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
}

// Elapsed returns the time since the session started, never negative.
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return max(now.Sub(s.StartTime), 0)
}

// Holder tracks at most one current session.
// Setting a session while another is current silently replaces it.
type Holder struct {
	mu        sync.Mutex
	current   *Session
	toolCalls int
}

// Set makes the given session current.
func (h *Holder) Set(id string, startTime time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &Session{ID: id, StartTime: startTime}
	h.toolCalls = 0
}

// Current returns the current session, if any.
func (h *Holder) Current() (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return Session{}, false
	}
	return *h.current, true
}

// Clear drops the current session unconditionally and returns it, if there
// was one. The client ends sessions with ClearIf instead, so an end racing a
// newer start leaves the newer session current.
func (h *Holder) Clear() (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return Session{}, false
	}
	s := *h.current
	h.current = nil
	return s, true
}

// NextToolCall counts one more tool call against the current session and
// returns the session with the call's 1-based number.
func (h *Holder) NextToolCall() (Session, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return Session{}, 0, false
	}
	h.toolCalls++
	return *h.current, h.toolCalls, true
}

// ClearIf drops the current session only if it still has the given id.
// It reports whether the slot was cleared.
func (h *Holder) ClearIf(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil || h.current.ID != id {
		return false
	}
	h.current = nil
	return true
}

// lastStamp holds the most recently issued id timestamp in milliseconds.
var lastStamp atomic.Int64

// NewID returns a session id of the form "session-<unix millis>".
// Ids issued by one process are strictly increasing even when the clock
// stalls or steps backwards.
func NewID(now time.Time) string {
	stamp := now.UnixMilli()
	for {
		last := lastStamp.Load()
		next := max(stamp, last+1)
		if lastStamp.CompareAndSwap(last, next) {
			return "session-" + strconv.FormatInt(next, 10)
		}
	}
}
