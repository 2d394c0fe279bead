/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"time"

	"chainguard.dev/lightningbridge/agents/lightning"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags. Zero values defer to the environment.
type rootOptions struct {
	url      string
	timeout  time.Duration
	disabled bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "lightningctl",
		Short: "Inspect and exercise a lightning collector",
		Long: `lightningctl talks to a lightning collector the same way agents do.

Configuration is read from LIGHTNING_BRIDGE_URL, ENABLE_AGENT_LIGHTNING and
LIGHTNING_BRIDGE_TIMEOUT_MS, and may be overridden by flags.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "", "collector base URL (overrides LIGHTNING_BRIDGE_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (overrides LIGHTNING_BRIDGE_TIMEOUT_MS)")
	rootCmd.PersistentFlags().BoolVar(&opts.disabled, "disabled", false, "behave as if ENABLE_AGENT_LIGHTNING=false")

	rootCmd.AddCommand(
		newHealthCmd(opts),
		newStatsCmd(opts),
		newSmokeCmd(opts),
	)
	return rootCmd
}

// client builds a lightning client from the environment and flags.
func (o *rootOptions) client(cmd *cobra.Command) (*lightning.Client, error) {
	cfg, err := lightning.ConfigFromEnv(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if o.url != "" {
		cfg.BridgeURL = o.url
	}
	if o.timeout != 0 {
		if o.timeout < time.Millisecond {
			return nil, fmt.Errorf("--timeout must be at least 1ms, got %v", o.timeout)
		}
		cfg.TimeoutMS = int(o.timeout / time.Millisecond)
	}
	if o.disabled {
		cfg.Enabled = false
	}
	return lightning.New(cfg)
}
