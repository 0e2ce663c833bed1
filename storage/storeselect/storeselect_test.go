// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package storeselect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/jaeger-lib/metrics"

	"github.com/jaegertracing/tracestore/model"
	"github.com/jaegertracing/tracestore/pkg/config"
)

func TestNewMemoryBackend(t *testing.T) {
	backend, err := New(Memory, config.MemoryOptions{}, config.RelationalOptions{}, metrics.NullFactory, nil)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Store.Accept(context.Background(), []model.Span{{TraceID: 1, ID: 1, Name: "get"}}))
	trace, err := backend.Store.GetTrace(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, "get", trace[0].Name)

	links, err := backend.Dependencies.GetDependencies(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestNewRelationalBackend(t *testing.T) {
	backend, err := New(Relational, config.MemoryOptions{}, config.RelationalOptions{
		Driver:         "sqlite3",
		DSN:            "file::memory:?cache=shared",
		ConnectTimeout: 2 * time.Second,
		MaxOpenConns:   1,
	}, metrics.NullFactory, nil)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Store.Accept(context.Background(), []model.Span{{TraceID: 1, ID: 1, Name: "get"}}))
	trace, err := backend.Store.GetTrace(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trace, 1)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("bogus", config.MemoryOptions{}, config.RelationalOptions{}, metrics.NullFactory, nil)
	assert.Error(t, err)
}
