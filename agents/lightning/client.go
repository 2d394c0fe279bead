/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lightning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/lightningbridge/agents/lightning/session"
	"chainguard.dev/lightningbridge/agents/lightning/transport"
	"chainguard.dev/lightningbridge/agents/metrics"
	"github.com/chainguard-dev/clog"
)

// Collector endpoints.
const (
	pathHealth       = "/health"
	pathStats        = "/stats"
	pathSessionStart = "/session/start"
	pathToolTrace    = "/tool/trace"
	pathReward       = "/session/reward"
	pathSessionEnd   = "/session/end"
)

// errRejected is reported when the collector answers 2xx without success=true.
var errRejected = errors.New("collector did not report success")

// Client sends session lifecycle events to the lightning collector.
//
// No method returns an error or panics because of the collector: every
// failure collapses to false or nil. A disabled client never touches the
// network.
//
// StartSession, TraceTool, EmitReward and EndSession share one "current
// session" slot; concurrent turns sharing those methods race on it. Use Open
// to get a Handle per turn instead.
type Client struct {
	cfg       Config
	transport *transport.Transport
	slot      session.Holder
	metrics   *metrics.Session
	now       func() time.Time
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	metrics       *metrics.Session
	now           func() time.Time
	transportOpts []transport.Option
}

// WithMetrics records session metrics on m instead of the global meter provider.
func WithMetrics(m *metrics.Session) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithClock replaces time.Now, for deterministic durations in tests.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}

// WithTransportOptions passes options through to the HTTP transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *clientOptions) {
		o.transportOpts = append(o.transportOpts, opts...)
	}
}

// New creates a Client. An error is returned only for an invalid
// configuration of an enabled client.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := clientOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewSession("chainguard.ai.agents.lightning")
	}

	c := &Client{
		cfg:     cfg,
		metrics: o.metrics,
		now:     o.now,
	}
	if !cfg.Enabled {
		return c, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lightning config: %w", err)
	}
	t, err := transport.New(cfg.BridgeURL, cfg.Timeout(), o.transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}
	c.transport = t
	return c, nil
}

// NewFromEnv creates a Client configured from the process environment.
func NewFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := ConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Enabled reports whether the client sends anything at all.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.transport != nil {
		c.transport.Close()
	}
}

// HealthCheck reports whether the collector answers GET /health with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if !c.cfg.Enabled {
		return false
	}
	_, err := c.transport.Get(ctx, pathHealth)
	// Any 2xx counts, whatever the body.
	return err == nil || transport.KindOf(err) == transport.Decode
}

// Stats returns the collector's statistics snapshot, or nil if unavailable.
func (c *Client) Stats(ctx context.Context) *Stats {
	if !c.cfg.Enabled {
		return nil
	}
	raw, err := c.transport.Get(ctx, pathStats)
	if err != nil {
		return nil
	}
	return parseStats(raw)
}

// Current returns the session in the client's slot, if any.
func (c *Client) Current() (session.Session, bool) {
	return c.slot.Current()
}

// StartSession starts a session and makes it current, replacing any session
// already in the slot. It returns the session id and whether the collector
// accepted it. On failure the slot is left unchanged.
func (c *Client) StartSession(ctx context.Context, message string, opts ...SessionOption) (string, bool) {
	s, ok := c.start(ctx, message, opts)
	if !ok {
		return "", false
	}
	c.slot.Set(s.ID, s.StartTime)
	return s.ID, true
}

// TraceTool records a tool invocation against the current session.
// Failures are not logged.
func (c *Client) TraceTool(ctx context.Context, toolName string, params map[string]any) bool {
	if !c.cfg.Enabled {
		return false
	}
	s, n, ok := c.slot.NextToolCall()
	if !ok {
		return false
	}
	return c.traceTool(ctx, s, n, toolName, params)
}

// EmitReward sends the outcome of the current session. Without WithDuration
// the duration is the time since the session started.
func (c *Client) EmitReward(ctx context.Context, success bool, opts ...RewardOption) bool {
	if !c.cfg.Enabled {
		return false
	}
	s, ok := c.slot.Current()
	if !ok {
		clog.FromContext(ctx).Debug("No active lightning session, dropping reward")
		return false
	}
	return c.emitReward(ctx, s, NewReward(success, opts...))
}

// EndSession ends the current session. The slot is cleared whether or not
// the collector accepts the call.
func (c *Client) EndSession(ctx context.Context) bool {
	if !c.cfg.Enabled {
		return false
	}
	s, ok := c.slot.Current()
	if !ok {
		return false
	}
	defer c.slot.ClearIf(s.ID)
	return c.end(ctx, s)
}

// start performs POST /session/start for a new session.
func (c *Client) start(ctx context.Context, message string, opts []SessionOption) (session.Session, bool) {
	if !c.cfg.Enabled {
		return session.Session{}, false
	}

	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	now := c.now()
	id := o.id
	if id == "" {
		id = session.NewID(now)
	}

	resp, err := c.transport.Post(ctx, pathSessionStart, startRequest{
		SessionID: id,
		Message:   message,
		Metadata:  o.metadata,
	})
	err = accepted(resp, err)
	c.metrics.RecordStart(ctx, err == nil)
	if err != nil {
		c.reportFailure(ctx, "start", id, err)
		return session.Session{}, false
	}
	return session.Session{ID: id, StartTime: now}, true
}

// traceTool performs POST /tool/trace. It never logs.
func (c *Client) traceTool(ctx context.Context, s session.Session, callNumber int, toolName string, params map[string]any) bool {
	if params == nil {
		params = map[string]any{}
	}
	resp, err := c.transport.Post(ctx, pathToolTrace, traceRequest{
		SessionID:  s.ID,
		ToolName:   toolName,
		Params:     params,
		CallNumber: callNumber,
	})
	err = accepted(resp, err)
	c.metrics.RecordToolTrace(ctx, toolName, err == nil)
	if err != nil {
		c.metrics.RecordFailure(ctx, "trace", failureKind(err))
		return false
	}
	return true
}

// emitReward performs POST /session/reward, deriving the duration from the
// session start when none was given.
func (c *Client) emitReward(ctx context.Context, s session.Session, r Reward) bool {
	if r.Duration == nil && !s.StartTime.IsZero() {
		d := s.Elapsed(c.now())
		r.Duration = &d
	}

	resp, err := c.transport.Post(ctx, pathReward, r.request(s.ID))
	if err = accepted(resp, err); err != nil {
		c.reportFailure(ctx, "reward", s.ID, err)
		return false
	}

	var tokens int64
	if r.TokensUsed != nil {
		tokens = *r.TokensUsed
	}
	c.metrics.RecordReward(ctx, r.Success, r.Score(), tokens)
	return true
}

// end performs POST /session/end.
func (c *Client) end(ctx context.Context, s session.Session) bool {
	resp, err := c.transport.Post(ctx, pathSessionEnd, endRequest{SessionID: s.ID})
	err = accepted(resp, err)
	c.metrics.RecordEnd(ctx, err == nil)
	if err != nil {
		c.reportFailure(ctx, "end", s.ID, err)
		return false
	}
	return true
}

// reportFailure logs and counts a failed start, reward or end call.
func (c *Client) reportFailure(ctx context.Context, operation, sessionID string, err error) {
	kind := failureKind(err)
	c.metrics.RecordFailure(ctx, operation, kind)
	clog.FromContext(ctx).
		With("operation", operation).
		With("session_id", sessionID).
		With("kind", kind).
		With("error", err.Error()).
		Warn("Lightning collector call failed")
}

// accepted turns a 2xx response without success=true into errRejected.
func accepted(resp map[string]any, err error) error {
	if err != nil {
		return err
	}
	if ok, _ := resp["success"].(bool); !ok {
		return errRejected
	}
	return nil
}

func failureKind(err error) string {
	if errors.Is(err, errRejected) {
		return "rejected"
	}
	return transport.KindOf(err).String()
}
