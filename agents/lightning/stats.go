/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lightning

import "chainguard.dev/lightningbridge/agents/toolcall/params"

// Stats is a snapshot of the collector's state. Only a few fields are
// interpreted; the full response is kept in Raw.
type Stats struct {
	Enabled        bool                   `json:"enabled" yaml:"enabled"`
	ActiveSessions int                    `json:"active_sessions" yaml:"active_sessions"`
	Sessions       map[string]SessionInfo `json:"sessions" yaml:"sessions"`
	Raw            map[string]any         `json:"-" yaml:"-"`
}

// SessionInfo is the collector's record of one active session.
type SessionInfo struct {
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	ToolCount int    `json:"tool_count" yaml:"tool_count"`
}

// parseStats extracts the named fields from a /stats response.
// Fields of an unexpected type are left at their zero value.
func parseStats(raw map[string]any) *Stats {
	s := &Stats{
		Sessions: make(map[string]SessionInfo),
		Raw:      raw,
	}
	s.Enabled = params.Lenient(raw, "enabled", false)
	s.ActiveSessions = params.Lenient(raw, "active_sessions", 0)

	sessions := params.Lenient[map[string]any](raw, "sessions", nil)
	for id, v := range sessions {
		rec, _ := v.(map[string]any)
		s.Sessions[id] = SessionInfo{
			StartedAt: params.Lenient(rec, "started_at", ""),
			Message:   params.Lenient(rec, "message", ""),
			ToolCount: params.Lenient(rec, "tool_count", 0),
		}
	}
	return s
}
