// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaegertracing/tracestore/model"
)

func acceptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <spans.json>",
		Short: "Read a JSON array of spans from a file and hand them to the backend's Accept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			spans, err := readSpansFile(args[0])
			if err != nil {
				return err
			}

			backend, logger, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			if err := backend.Store.Accept(context.Background(), spans); err != nil {
				return errors.Wrap(err, "accept")
			}
			logger.Info("accepted spans", zap.Int("count", len(spans)))
			fmt.Printf("accepted %d span(s)\n", len(spans))
			return nil
		},
	}
}

func readSpansFile(path string) ([]model.Span, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening spans file")
	}
	defer f.Close()

	var spans []model.Span
	if err := json.NewDecoder(f).Decode(&spans); err != nil {
		return nil, errors.Wrap(err, "decoding spans file")
	}
	return spans, nil
}
