// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package storeselect picks and constructs one backend behind the
// storage/spanstore and storage/dependencystore interfaces at startup, the
// way jaeger's plugin/storage.Factory picks among its registered backends
// by name (spec.md §9's "tagged variant" design note).
package storeselect

import (
	"fmt"

	"github.com/uber/jaeger-lib/metrics"
	"go.uber.org/zap"

	"github.com/jaegertracing/tracestore/pkg/config"
	"github.com/jaegertracing/tracestore/storage/dependencystore"
	"github.com/jaegertracing/tracestore/storage/spanstore"
	"github.com/jaegertracing/tracestore/storage/spanstore/memory"
	spanstoremetrics "github.com/jaegertracing/tracestore/storage/spanstore/metrics"
	"github.com/jaegertracing/tracestore/storage/spanstore/relational"
)

// Backend types recognized by New, analogous to jaeger's
// memoryStorageType/cassandraStorageType constants.
const (
	Memory     = "memory"
	Relational = "relational"
)

// Backend bundles the span store and the dependency-link reader a caller
// needs: one concrete store satisfies both, but dependencystore.Reader is
// kept separate since spec.md models it as its own contract (§6).
type Backend struct {
	Store        spanstore.Store
	Dependencies dependencystore.Reader

	closer func() error
}

// Close releases the backend's resources, if any (the relational backend's
// *sql.DB pool; the in-memory backend has none).
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// New constructs the named backend, wrapping its Reader/Writer in the
// metrics decorators from storage/spanstore/metrics (spec.md §6's metrics
// surface applying to the storage layer, not the pure core packages).
func New(kind string, memOpts config.MemoryOptions, relOpts config.RelationalOptions, metricsFactory metrics.Factory, logger *zap.Logger) (*Backend, error) {
	switch kind {
	case Memory:
		_ = memOpts // no tunables today; kept for a uniform call signature
		store := memory.New(logger)
		return decorate(store, store, metricsFactory, nil), nil

	case Relational:
		store, err := relational.Open(relOpts, logger)
		if err != nil {
			return nil, err
		}
		return decorate(store, store, metricsFactory, store.Close), nil

	default:
		return nil, fmt.Errorf("unknown span storage type %q, expected %q or %q", kind, Memory, Relational)
	}
}

// storeAndDeps is satisfied by both backend concrete types: each one is a
// spanstore.Store that additionally implements dependencystore.Reader.
type storeAndDeps interface {
	spanstore.Store
	dependencystore.Reader
}

func decorate(store storeAndDeps, deps dependencystore.Reader, metricsFactory metrics.Factory, closer func() error) *Backend {
	scoped := metricsFactory.Namespace("span_storage", nil)
	wrapped := struct {
		spanstore.Reader
		spanstore.Writer
	}{
		Reader: spanstoremetrics.NewReadMetricsDecorator(store, scoped),
		Writer: spanstoremetrics.NewWriteMetricsDecorator(store, scoped),
	}
	return &Backend{Store: wrapped, Dependencies: deps, closer: closer}
}
