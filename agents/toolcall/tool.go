/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"context"
	"fmt"

	"chainguard.dev/lightningbridge/agents/toolcall/params"
)

// ToolCall is a provider-independent representation of a tool call.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Definition describes a tool's schema (name, description, parameters).
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Parameter describes a single tool parameter.
type Parameter struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number"
	Description string
	Required    bool
}

// Handler executes a tool call and returns its response.
type Handler func(ctx context.Context, call ToolCall) map[string]any

// Tool defines a tool once with a single handler that works with any provider.
type Tool struct {
	Def     Definition
	Handler Handler
}

// Tools indexes tools by name.
type Tools map[string]Tool

// NewTools indexes the given tools by their definition name.
func NewTools(tools ...Tool) Tools {
	out := make(Tools, len(tools))
	for _, t := range tools {
		out[t.Def.Name] = t
	}
	return out
}

// Call dispatches call to the tool of the same name. Unknown tools and
// missing required parameters produce an error response without invoking
// any handler.
func (ts Tools) Call(ctx context.Context, call ToolCall) map[string]any {
	t, ok := ts[call.Name]
	if !ok {
		return params.Error("unknown tool %q", call.Name)
	}
	return t.Call(ctx, call)
}

// Call checks required parameters and invokes the handler.
func (t Tool) Call(ctx context.Context, call ToolCall) map[string]any {
	if err := t.Def.Validate(call.Args); err != nil {
		return params.ErrorWithContext(err, map[string]any{"tool": t.Def.Name})
	}
	if t.Handler == nil {
		return params.Error("tool %q has no handler", t.Def.Name)
	}
	return t.Handler(ctx, call)
}

// Validate reports the first required parameter missing from args.
func (d Definition) Validate(args map[string]any) error {
	for _, p := range d.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return fmt.Errorf("%s parameter is required", p.Name)
		}
	}
	return nil
}

// Param extracts a required parameter from the tool call args.
// On error it returns an error response for the model.
func Param[T any](call ToolCall, name string) (T, map[string]any) {
	v, err := params.Extract[T](call.Args, name)
	if err != nil {
		return v, params.Error("%s", err)
	}
	return v, nil
}

// OptionalParam extracts an optional parameter from the tool call args.
func OptionalParam[T any](call ToolCall, name string, defaultValue T) (T, map[string]any) {
	v, err := params.ExtractOptional[T](call.Args, name, defaultValue)
	if err != nil {
		return v, params.Error("%s", err)
	}
	return v, nil
}
