// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package spanstore declares the read/write contract both backends
// (in-memory and relational) implement, per spec.md §6 and §9's "tagged
// variant" design note.
package spanstore

import (
	"context"

	"github.com/jaegertracing/tracestore/model"
)

// Writer accepts spans for durable placement. It returns after every span in
// the batch is placed (for the relational store: committed), or a single
// error describing the first failure; partial success within a batch is not
// exposed (spec.md §6).
type Writer interface {
	Accept(ctx context.Context, spans []model.Span) error
}

// Reader answers the four query shapes named in spec.md §1.
type Reader interface {
	// GetTrace returns the merged, clock-skew-corrected trace, or nil if the
	// trace id is unknown.
	GetTrace(ctx context.Context, traceID int64) ([]model.Span, error)

	// GetRawTrace returns the unmerged spans as inserted, or nil if unknown.
	GetRawTrace(ctx context.Context, traceID int64) ([]model.Span, error)

	// GetTraces runs a trace-search-by-criteria query.
	GetTraces(ctx context.Context, req model.QueryRequest) ([][]model.Span, error)

	// GetServiceNames returns every known service name, ascending.
	GetServiceNames(ctx context.Context) ([]string, error)

	// GetSpanNames returns every known span name for service, ascending.
	GetSpanNames(ctx context.Context, service string) ([]string, error)
}

// Store combines Reader and Writer, the minimal surface a backend must
// implement (spec.md §9).
type Store interface {
	Reader
	Writer
}
