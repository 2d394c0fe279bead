/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("collector is not healthy")

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the collector answers /health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if !client.Enabled() {
				fmt.Fprintln(out, warningStyle.Render("Tracing is disabled, nothing to check"))
				return nil
			}

			fmt.Fprintln(out, infoStyle.Render("Collector: "+client.Config().BridgeURL))
			if !client.HealthCheck(cmd.Context()) {
				fmt.Fprintln(out, errorStyle.Render("Collector unreachable or unhealthy"))
				return errUnhealthy
			}
			fmt.Fprintln(out, successStyle.Render("Collector healthy"))
			return nil
		},
	}
}
