/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHolderLifecycle(t *testing.T) {
	var h Holder

	if _, ok := h.Current(); ok {
		t.Fatal("current on empty holder: got = ok, wanted = none")
	}

	start := time.Now()
	h.Set("session-1", start)

	got, ok := h.Current()
	if !ok {
		t.Fatal("current after set: got = none, wanted = session")
	}
	if got.ID != "session-1" {
		t.Errorf("id: got = %q, wanted = %q", got.ID, "session-1")
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start time: got = %v, wanted = %v", got.StartTime, start)
	}

	// A second Set replaces the first without error.
	h.Set("session-2", start.Add(time.Second))
	if got, _ := h.Current(); got.ID != "session-2" {
		t.Errorf("id after replace: got = %q, wanted = %q", got.ID, "session-2")
	}

	cleared, ok := h.Clear()
	if !ok || cleared.ID != "session-2" {
		t.Errorf("clear: got = (%q, %v), wanted = (%q, true)", cleared.ID, ok, "session-2")
	}
	if _, ok := h.Current(); ok {
		t.Error("current after clear: got = ok, wanted = none")
	}
	if _, ok := h.Clear(); ok {
		t.Error("second clear: got = ok, wanted = none")
	}
}

func TestHolderClearIf(t *testing.T) {
	var h Holder
	h.Set("a", time.Now())

	if h.ClearIf("b") {
		t.Error("clear with other id: got = true, wanted = false")
	}
	if _, ok := h.Current(); !ok {
		t.Fatal("slot cleared by mismatched id")
	}
	if !h.ClearIf("a") {
		t.Error("clear with matching id: got = false, wanted = true")
	}
	if h.ClearIf("a") {
		t.Error("clear on empty slot: got = true, wanted = false")
	}
}

func TestHolderNextToolCall(t *testing.T) {
	var h Holder

	if _, _, ok := h.NextToolCall(); ok {
		t.Fatal("tool call on empty holder: got = ok, wanted = none")
	}

	h.Set("a", time.Now())
	for want := 1; want <= 3; want++ {
		s, n, ok := h.NextToolCall()
		if !ok || s.ID != "a" || n != want {
			t.Errorf("tool call: got = (%q, %d, %v), wanted = (%q, %d, true)", s.ID, n, ok, "a", want)
		}
	}

	// A new session restarts the numbering.
	h.Set("b", time.Now())
	if _, n, _ := h.NextToolCall(); n != 1 {
		t.Errorf("first call of new session: got = %d, wanted = 1", n)
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Session{ID: "x", StartTime: start}

	if got := s.Elapsed(start.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("elapsed: got = %v, wanted = 1.5s", got)
	}
	if got := s.Elapsed(start.Add(-time.Second)); got != 0 {
		t.Errorf("elapsed before start: got = %v, wanted = 0", got)
	}
	if got := (Session{}).Elapsed(start); got != 0 {
		t.Errorf("elapsed without start: got = %v, wanted = 0", got)
	}
}

func TestNewIDMonotonic(t *testing.T) {
	now := time.Now()

	first := NewID(now)
	second := NewID(now)
	if !strings.HasPrefix(first, "session-") {
		t.Errorf("prefix: got = %q, wanted = session-*", first)
	}
	if first == second {
		t.Errorf("ids for same instant: got = %q twice, wanted distinct", first)
	}

	// A clock that steps backwards still yields fresh ids.
	if third := NewID(now.Add(-time.Hour)); third == first || third == second {
		t.Errorf("id after clock step back: got = %q, wanted fresh", third)
	}
}

func TestNewIDConcurrent(t *testing.T) {
	const n = 200
	now := time.Now()

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewID(now)
			mu.Lock()
			defer mu.Unlock()
			seen[id] = struct{}{}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("unique ids: got = %d, wanted = %d", len(seen), n)
	}
}

func TestHolderClearIgnoresIdentity(t *testing.T) {
	var h Holder
	h.Set("old", time.Now())
	h.Set("new", time.Now())

	// An end for the replaced session leaves the newer one current.
	if h.ClearIf("old") {
		t.Error("ClearIf(old): got = true, wanted = false")
	}
	if got, ok := h.Current(); !ok || got.ID != "new" {
		t.Errorf("current: got = (%q, %v), wanted = (%q, true)", got.ID, ok, "new")
	}

	if cleared, ok := h.Clear(); !ok || cleared.ID != "new" {
		t.Errorf("Clear(): got = (%q, %v), wanted = (%q, true)", cleared.ID, ok, "new")
	}
}
