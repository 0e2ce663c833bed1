// Copyright (c) 2017 Uber Technologies, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dependencystore declares the contract for deriving and, where a
// backend chooses to cache them, persisting service-dependency links.
package dependencystore

import (
	"context"

	"github.com/jaegertracing/tracestore/model"
)

// Reader derives the service-dependency graph observed in the window
// [endTs-lookback, endTs], both ends inclusive, per spec.md §6. lookback is in
// milliseconds; when
// nil it defaults to endTs (the whole history up to endTs).
type Reader interface {
	GetDependencies(ctx context.Context, endTs int64, lookback *int64) ([]model.DependencyLink, error)
}
