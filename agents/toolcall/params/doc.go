/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed values from decoded JSON objects, such as
// tool call arguments and collector responses, and builds error responses.
package params
