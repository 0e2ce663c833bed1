// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Command tracestore wires one span-store backend and exposes spec.md §6's
// six read operations plus Accept from the command line, for manually
// exercising a backend without the out-of-scope HTTP ingest/query layers.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uber/jaeger-lib/metrics"
	"go.uber.org/zap"

	"github.com/jaegertracing/tracestore/pkg/config"
	"github.com/jaegertracing/tracestore/storage/storeselect"
)

var v = viper.New()

func main() {
	command := &cobra.Command{
		Use:   "tracestore",
		Short: "Exercise the distributed-tracing span store from the command line.",
	}

	flagSet := new(flag.FlagSet)
	config.AddStorageTypeFlag(flagSet)
	config.AddRelationalFlags(flagSet)
	command.PersistentFlags().AddGoFlagSet(flagSet)
	v.BindPFlags(command.PersistentFlags())

	command.AddCommand(acceptCommand())
	command.AddCommand(getTraceCommand())
	command.AddCommand(getRawTraceCommand())
	command.AddCommand(queryCommand())
	command.AddCommand(servicesCommand())
	command.AddCommand(spanNamesCommand())
	command.AddCommand(dependenciesCommand())

	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func openBackend() (*storeselect.Backend, *zap.Logger, error) {
	logger := newLogger()
	kind := config.StorageTypeFromViper(v)
	relOpts := config.InitRelationalOptionsFromViper(v)
	backend, err := storeselect.New(kind, config.MemoryOptions{}, relOpts, metrics.NullFactory, logger)
	return backend, logger, err
}
