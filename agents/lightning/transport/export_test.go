/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transport

import "github.com/prometheus/client_golang/prometheus"

// RequestCounter exposes the request counter to external tests.
func RequestCounter() *prometheus.CounterVec {
	return requestCounter
}
