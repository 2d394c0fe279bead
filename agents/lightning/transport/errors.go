/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"errors"
	"fmt"
)

// Kind classifies why a request to the collector failed.
type Kind int

const (
	// KindNone is reported for nil errors and errors not produced by this package.
	KindNone Kind = iota
	// Unreachable covers refused connections, DNS failures, resets and cancellation.
	Unreachable
	// Timeout means the request did not complete within the configured timeout.
	Timeout
	// BadStatus means the collector answered with a non-2xx status.
	BadStatus
	// Decode means the response body was not a JSON object.
	Decode
	// Encode means the request body could not be serialized.
	Encode
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	case BadStatus:
		return "bad_status"
	case Decode:
		return "decode"
	case Encode:
		return "encode"
	default:
		return "none"
	}
}

// Error is returned by every failed Transport request.
type Error struct {
	Method     string
	Path       string
	Kind       Kind
	StatusCode int // set for BadStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == BadStatus {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Method, e.Path, e.Kind, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNone
}

// StatusCode returns the HTTP status carried by a BadStatus error, or 0.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
