// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func servicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List every known service name.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			names, err := backend.Store.GetServiceNames(context.Background())
			if err != nil {
				return errors.Wrap(err, "get service names")
			}
			return printJSON(names)
		},
	}
}

func spanNamesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "span-names <service>",
		Short: "List every known span name for a service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			backend, _, err := openBackend()
			if err != nil {
				return errors.Wrap(err, "opening backend")
			}
			defer backend.Close()

			names, err := backend.Store.GetSpanNames(context.Background(), args[0])
			if err != nil {
				return errors.Wrap(err, "get span names")
			}
			return printJSON(names)
		},
	}
}
