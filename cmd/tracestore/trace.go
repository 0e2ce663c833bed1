// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func getTraceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-trace <traceID>",
		Short: "Print the merged, clock-skew-corrected trace for a trace id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			traceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(err, "parsing trace id")
			}

			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			trace, err := backend.Store.GetTrace(context.Background(), traceID)
			if err != nil {
				return errors.Wrap(err, "get trace")
			}
			return printJSON(trace)
		},
	}
}

func getRawTraceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-raw-trace <traceID>",
		Short: "Print the unmerged spans stored for a trace id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			traceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(err, "parsing trace id")
			}

			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			trace, err := backend.Store.GetRawTrace(context.Background(), traceID)
			if err != nil {
				return errors.Wrap(err, "get raw trace")
			}
			return printJSON(trace)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
