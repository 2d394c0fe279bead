/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package toolcall defines provider-independent tools an agent can invoke.
//
// A Tool pairs a Definition (name, description, parameters) with a handler
// that receives the raw call arguments and returns a JSON-shaped response:
//
//	tool := toolcall.Tool{
//		Def: toolcall.Definition{
//			Name: "read_file",
//			Parameters: []toolcall.Parameter{
//				{Name: "path", Type: "string", Required: true},
//			},
//		},
//		Handler: func(ctx context.Context, call toolcall.ToolCall) map[string]any {
//			path, errResp := toolcall.Param[string](call, "path")
//			if errResp != nil {
//				return errResp
//			}
//			...
//		},
//	}
//
// Handlers report failures in-band with an "error" key (see params.Error),
// so a model can read and react to them.
package toolcall
