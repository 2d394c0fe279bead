/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall_test

import (
	"context"
	"testing"

	"chainguard.dev/lightningbridge/agents/toolcall"
	"github.com/google/go-cmp/cmp"
)

func echoTool() toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "echo",
			Description: "Echoes its input",
			Parameters: []toolcall.Parameter{
				{Name: "input", Type: "string", Description: "The input", Required: true},
				{Name: "count", Type: "integer", Description: "Repetitions"},
			},
		},
		Handler: func(_ context.Context, call toolcall.ToolCall) map[string]any {
			input, errResp := toolcall.Param[string](call, "input")
			if errResp != nil {
				return errResp
			}
			count, errResp := toolcall.OptionalParam(call, "count", 1)
			if errResp != nil {
				return errResp
			}
			return map[string]any{"input": input, "count": count}
		},
	}
}

func TestToolsCall(t *testing.T) {
	tools := toolcall.NewTools(echoTool())
	ctx := context.Background()

	tests := []struct {
		name string
		call toolcall.ToolCall
		want map[string]any
	}{{
		name: "success",
		call: toolcall.ToolCall{ID: "1", Name: "echo", Args: map[string]any{"input": "hi", "count": float64(2)}},
		want: map[string]any{"input": "hi", "count": 2},
	}, {
		name: "default optional",
		call: toolcall.ToolCall{ID: "2", Name: "echo", Args: map[string]any{"input": "hi"}},
		want: map[string]any{"input": "hi", "count": 1},
	}, {
		name: "missing required",
		call: toolcall.ToolCall{ID: "3", Name: "echo", Args: map[string]any{}},
		want: map[string]any{"error": "input parameter is required", "tool": "echo"},
	}, {
		name: "wrong type",
		call: toolcall.ToolCall{ID: "4", Name: "echo", Args: map[string]any{"input": true}},
		want: map[string]any{"error": "input parameter must be of type string, got bool"},
	}, {
		name: "unknown tool",
		call: toolcall.ToolCall{ID: "5", Name: "nope"},
		want: map[string]any{"error": `unknown tool "nope"`},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tools.Call(ctx, tt.call)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Call() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolWithoutHandler(t *testing.T) {
	tool := toolcall.Tool{Def: toolcall.Definition{Name: "empty"}}
	got := tool.Call(context.Background(), toolcall.ToolCall{Name: "empty"})
	if _, ok := got["error"]; !ok {
		t.Errorf("Call(): got = %v, wanted error response", got)
	}
}
