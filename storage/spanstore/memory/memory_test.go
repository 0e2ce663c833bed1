// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegertracing/tracestore/model"
	"github.com/jaegertracing/tracestore/storage/spanstore/storagetest"
)

func TestMemoryStorageScenarios(t *testing.T) {
	store := New(nil)
	storagetest.RunScenarios(t, store, store)
}

func ptr(v int64) *int64 { return &v }

func TestAcceptAndGetTrace(t *testing.T) {
	store := New(nil)
	ep := &model.Endpoint{ServiceName: "frontend"}
	span := model.Span{
		TraceID: 1, ID: 1, Name: "get", Timestamp: ptr(1000), Duration: ptr(50),
		Annotations: []model.Annotation{{Timestamp: 1000, Value: model.ServerRecv, Endpoint: ep}},
	}
	require.NoError(t, store.Accept(context.Background(), []model.Span{span}))

	trace, err := store.GetTrace(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, "get", trace[0].Name)
}

func TestGetTraceUnknownReturnsNil(t *testing.T) {
	store := New(nil)
	trace, err := store.GetTrace(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, trace)
}

func TestAcceptMergesDuplicateReports(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1, ID: 1, Name: "unknown", Timestamp: ptr(100)}}))
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1, ID: 1, Name: "get", Duration: ptr(25)}}))

	trace, err := store.GetTrace(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, "get", trace[0].Name)
	assert.Equal(t, int64(25), *trace[0].Duration)
}

func TestGetRawTraceReturnsUnmergedSpans(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1, ID: 1, Name: "unknown"}}))
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1, ID: 1, Name: "get"}}))

	raw, err := store.GetRawTrace(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestGetServiceNamesAndSpanNames(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "frontend"}
	require.NoError(t, store.Accept(ctx, []model.Span{{
		TraceID: 1, ID: 1, Name: "get",
		Annotations: []model.Annotation{{Value: model.ServerRecv, Endpoint: ep}},
	}}))

	services, err := store.GetServiceNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"frontend"}, services)

	names, err := store.GetSpanNames(ctx, "FRONTEND")
	require.NoError(t, err)
	assert.Equal(t, []string{"get"}, names)
}

func TestGetTracesFiltersByServiceAndLimit(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "frontend"}
	for i := int64(1); i <= 3; i++ {
		span := model.Span{
			TraceID: i, ID: 1, Name: "get", Timestamp: ptr(1000 * i),
			Annotations: []model.Annotation{{Timestamp: 1000 * i, Value: model.ServerRecv, Endpoint: ep}},
		}
		require.NoError(t, store.Accept(ctx, []model.Span{span}))
	}

	req := model.QueryRequest{ServiceName: "frontend", EndTs: 10, Lookback: 10, Limit: 2}
	traces, err := store.GetTraces(ctx, req)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	// Newest trace (highest timestamp) sorts first.
	assert.Equal(t, int64(3), traces[0][0].TraceID)
	assert.Equal(t, int64(2), traces[1][0].TraceID)
}

func TestGetDependenciesDerivesEdgeAcrossTraces(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	frontend := &model.Endpoint{ServiceName: "frontend"}
	backend := &model.Endpoint{ServiceName: "backend"}
	parentID := int64(1)

	spans := []model.Span{
		{TraceID: 1, ID: 1, Timestamp: ptr(1000),
			Annotations: []model.Annotation{{Timestamp: 1000, Value: model.ServerRecv, Endpoint: frontend}}},
		{TraceID: 1, ID: 2, ParentID: &parentID, Timestamp: ptr(1010),
			Annotations: []model.Annotation{{Timestamp: 1010, Value: model.ServerRecv, Endpoint: backend}}},
	}
	require.NoError(t, store.Accept(ctx, spans))

	links, err := store.GetDependencies(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "frontend", links[0].Parent)
	assert.Equal(t, "backend", links[0].Child)
	assert.Equal(t, int64(1), links[0].CallCount)
}

func TestAcceptedSpanCount(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1, ID: 1}, {TraceID: 2, ID: 1}}))
	assert.Equal(t, 2, store.AcceptedSpanCount())
}
