/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodySize bounds how much of a collector response is read.
const maxBodySize = 1 << 20 // 1 MiB

// Transport performs single-attempt JSON requests against the collector.
// It is safe for concurrent use.
type Transport struct {
	baseURL *url.URL
	timeout time.Duration
	client  *http.Client
}

// Option configures a Transport.
type Option func(*Transport)

// WithRoundTripper sets the base round tripper wrapped by the otel instrumentation.
// Defaults to http.DefaultTransport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *Transport) {
		t.client.Transport = rt
	}
}

// New creates a Transport for the collector at baseURL.
// Every request is bounded by timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Transport, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q: missing host", baseURL)
	}

	t := &Transport{
		baseURL: u,
		timeout: timeout,
		client:  &http.Client{Transport: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(t)
	}

	t.client.Timeout = timeout
	t.client.Transport = otelhttp.NewTransport(t.client.Transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "lightning " + r.Method + " " + r.URL.Path
		}))

	return t, nil
}

// Timeout returns the per-request timeout.
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// BaseURL returns the collector base URL.
func (t *Transport) BaseURL() string {
	return t.baseURL.String()
}

// Get issues a GET request for path.
func (t *Transport) Get(ctx context.Context, path string) (map[string]any, error) {
	return t.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request for path with body encoded as JSON.
func (t *Transport) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	return t.Do(ctx, http.MethodPost, path, body)
}

// Do sends exactly one request and decodes the JSON object in the response.
// Failures are always returned as *Error.
func (t *Transport) Do(ctx context.Context, method, path string, body any) (result map[string]any, err error) {
	start := time.Now()
	defer func() {
		requestCounter.WithLabelValues(path, outcome(err)).Inc()
		requestLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	fail := func(kind Kind, cause error) error {
		return &Error{Method: method, Path: path, Kind: kind, Err: cause}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fail(Encode, err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, t.resolve(path), reader)
	if err != nil {
		return nil, fail(Unreachable, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fail(classify(err), err)
	}
	defer resp.Body.Close()

	// The status decides the outcome before the body is trusted.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, Path: path, Kind: BadStatus, StatusCode: resp.StatusCode}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("reading response: %w", err))
	}

	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fail(Decode, err)
	}
	if result == nil {
		return nil, fail(Decode, errors.New("response is not a JSON object"))
	}
	return result, nil
}

// Close releases idle connections held by the underlying client.
func (t *Transport) Close() {
	t.client.CloseIdleConnections()
}

func (t *Transport) resolve(path string) string {
	u := *t.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String()
}

// classify maps a client or body-read error to a Kind.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unreachable
}
