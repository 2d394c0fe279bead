/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package session holds the in-memory session identity used by the lightning
// client: the single "current session" slot and the session id generator.
//
// Nothing in this package performs I/O.
package session
