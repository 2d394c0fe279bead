/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics provides OpenTelemetry instruments for traced agent
// sessions: session starts and ends, tool traces, rewards, token usage and
// collector failures.
package metrics
