// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func dependenciesCommand() *cobra.Command {
	var (
		endTs    int64
		lookback int64
	)

	cmd := &cobra.Command{
		Use:   "dependencies",
		Short: "Derive the service-dependency graph observed in a time window (spec.md §4.7).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			var lb *int64
			if cmd.Flags().Changed("lookback") {
				lb = &lookback
			}

			links, err := backend.Dependencies.GetDependencies(context.Background(), endTs, lb)
			if err != nil {
				return errors.Wrap(err, "get dependencies")
			}
			return printJSON(links)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&endTs, "end-ts", 0, "end of the window, in epoch milliseconds (required)")
	flags.Int64Var(&lookback, "lookback", 0, "lookback window in milliseconds; defaults to end-ts (the whole history)")
	return cmd
}
