// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jaegertracing/tracestore/model"
)

func queryCommand() *cobra.Command {
	var (
		serviceName string
		spanName    string
		annotations []string
		binaryFlags []string
		minDuration int64
		maxDuration int64
		endTs       int64
		lookback    int64
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a trace-search-by-criteria query (spec.md §4.4).",
		RunE: func(_ *cobra.Command, _ []string) error {
			req := model.QueryRequest{
				ServiceName: serviceName,
				SpanName:    spanName,
				Annotations: annotations,
				EndTs:       endTs,
				Lookback:    lookback,
				Limit:       limit,
			}
			if len(binaryFlags) > 0 {
				req.BinaryAnnotations = make(map[string]string, len(binaryFlags))
				for _, kv := range binaryFlags {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return errors.Errorf("invalid --binary-annotation %q, expected key=value", kv)
					}
					req.BinaryAnnotations[parts[0]] = parts[1]
				}
			}
			if minDuration > 0 {
				req.MinDuration = &minDuration
			}
			if maxDuration > 0 {
				req.MaxDuration = &maxDuration
			}

			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			traces, err := backend.Store.GetTraces(context.Background(), req)
			if err != nil {
				return errors.Wrap(err, "query")
			}
			return printJSON(traces)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serviceName, "service", "", "service name to search for (required)")
	flags.StringVar(&spanName, "span-name", "", "restrict to spans with this name")
	flags.StringSliceVar(&annotations, "annotation", nil, "require this plain annotation value; repeatable")
	flags.StringSliceVar(&binaryFlags, "binary-annotation", nil, "require key=value as a string binary annotation; repeatable")
	flags.Int64Var(&minDuration, "min-duration", 0, "minimum span duration in microseconds")
	flags.Int64Var(&maxDuration, "max-duration", 0, "maximum span duration in microseconds")
	flags.Int64Var(&endTs, "end-ts", 0, "end of the query window, in epoch milliseconds")
	flags.Int64Var(&lookback, "lookback", 0, "lookback window in milliseconds")
	flags.IntVar(&limit, "limit", 10, "maximum number of traces to return")
	return cmd
}
