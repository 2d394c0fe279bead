/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lightning

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	// DefaultBridgeURL is where the collector listens unless configured otherwise.
	DefaultBridgeURL = "http://localhost:8765"
	// DefaultTimeout bounds every collector call unless configured otherwise.
	DefaultTimeout = 5 * time.Second
)

// Config is fixed for the lifetime of a Client.
type Config struct {
	BridgeURL string `env:"LIGHTNING_BRIDGE_URL,default=http://localhost:8765"`
	Enabled   bool   `env:"ENABLE_AGENT_LIGHTNING,default=true"`
	TimeoutMS int    `env:"LIGHTNING_BRIDGE_TIMEOUT_MS,default=5000"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		BridgeURL: DefaultBridgeURL,
		Enabled:   true,
		TimeoutMS: int(DefaultTimeout / time.Millisecond),
	}
}

// ConfigFromEnv reads the configuration from the process environment.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing lightning config: %w", err)
	}
	return cfg, nil
}

// ConfigFromLookuper reads the configuration from the given lookuper.
func ConfigFromLookuper(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("processing lightning config: %w", err)
	}
	return cfg, nil
}

// Timeout returns the per-call timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate checks that the configuration can build a working client.
func (c Config) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout must be positive, got %dms", c.TimeoutMS)
	}
	if c.BridgeURL == "" {
		return errors.New("bridge URL is required")
	}
	u, err := url.Parse(c.BridgeURL)
	if err != nil {
		return fmt.Errorf("parsing bridge URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("bridge URL %q must use http or https", c.BridgeURL)
	}
	return nil
}
