/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package lightningtest provides an in-process fake of the lightning collector
// for tests. It answers the collector's HTTP surface the way the real bridge
// service does, records every request, and can inject failures per path.
package lightningtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Request is one request received by the fake collector.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

// fault describes an injected failure for a path.
type fault struct {
	status    int
	delay     time.Duration
	malformed bool
	success   *bool
}

// sessionRecord mirrors the collector's per-session bookkeeping.
type sessionRecord struct {
	StartedAt string `json:"started_at"`
	Message   string `json:"message"`
	ToolCount int    `json:"tool_count"`
}

// Server is a fake collector backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	faults   map[string]fault
	sessions map[string]*sessionRecord
	enabled  bool
}

// NewServer starts a fake collector that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		faults:   make(map[string]fault),
		sessions: make(map[string]*sessionRecord),
		enabled:  true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.wrap(s.handleHealth))
	mux.HandleFunc("GET /stats", s.wrap(s.handleStats))
	mux.HandleFunc("POST /session/start", s.wrap(s.handleSessionStart))
	mux.HandleFunc("POST /tool/trace", s.wrap(s.handleToolTrace))
	mux.HandleFunc("POST /session/reward", s.wrap(s.handleReward))
	mux.HandleFunc("POST /session/end", s.wrap(s.handleSessionEnd))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// FailWith makes every request to path answer with the given HTTP status.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[path]
	f.status = status
	s.faults[path] = f
}

// Delay makes every request to path wait d before answering.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[path]
	f.delay = d
	s.faults[path] = f
}

// Malformed makes every request to path answer 200 with a body that is not JSON.
func (s *Server) Malformed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[path]
	f.malformed = true
	s.faults[path] = f
}

// RejectWith makes every request to path answer 200 with {"success": success}.
func (s *Server) RejectWith(path string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[path]
	f.success = &success
	s.faults[path] = f
}

// Heal removes every injected fault.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

// SetTracingEnabled controls the "enabled" flag the collector reports.
func (s *Server) SetTracingEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests received for path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// wrap records the request and applies any fault before calling next.
func (s *Server) wrap(next func(w http.ResponseWriter, body map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if raw, err := io.ReadAll(r.Body); err == nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		f := s.faults[r.URL.Path]
		s.mu.Unlock()

		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		switch {
		case f.status != 0:
			writeJSON(w, f.status, map[string]any{"success": false, "error": "injected failure"})
			return
		case f.malformed:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, "{not json")
			return
		case f.success != nil:
			writeJSON(w, http.StatusOK, map[string]any{"success": *f.success})
			return
		}
		next(w, body)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         "agent-lightning-bridge",
		"tracing_enabled": s.enabled,
		"active_sessions": len(s.sessions),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":         s.enabled,
		"active_sessions": len(s.sessions),
		"sessions":        s.sessions,
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, body map[string]any) {
	id, _ := body["session_id"].(string)
	message, _ := body["message"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &sessionRecord{
		StartedAt: time.Now().Format(time.RFC3339Nano),
		Message:   message,
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": id,
		"enabled":    s.enabled,
	})
}

func (s *Server) handleToolTrace(w http.ResponseWriter, body map[string]any) {
	id, _ := body["session_id"].(string)
	name, _ := body["tool_name"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[id]; ok {
		rec.ToolCount++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"traced":    s.enabled,
		"tool_name": name,
	})
}

func (s *Server) handleReward(w http.ResponseWriter, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"rewarded": s.enabled,
	})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, body map[string]any) {
	id, _ := body["session_id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ended":   s.enabled,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
