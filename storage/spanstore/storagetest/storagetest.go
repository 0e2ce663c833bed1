// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package storagetest runs one scenario table against any spanstore.Store,
// the way plugin/storage/integration.StorageIntegration runs its
// IntegrationTestAll against every registered backend, except here the
// scenarios are driven directly against the store rather than through a
// suite struct.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegertracing/tracestore/model"
	"github.com/jaegertracing/tracestore/pkg/storeerr"
	"github.com/jaegertracing/tracestore/storage/dependencystore"
	"github.com/jaegertracing/tracestore/storage/spanstore"
)

func ptr(v int64) *int64 { return &v }

// RunScenarios exercises store/deps through accept, read, query and
// dependency-derivation scenarios. Each scenario picks its own trace ids so
// the scenarios can run in sequence against a single, shared store instance.
func RunScenarios(t *testing.T, store spanstore.Store, deps dependencystore.Reader) {
	t.Run("AcceptAndGetTrace", func(t *testing.T) { testAcceptAndGetTrace(t, store) })
	t.Run("MergesDuplicateReports", func(t *testing.T) { testMergesDuplicateReports(t, store) })
	t.Run("GetRawTraceIsUnmerged", func(t *testing.T) { testGetRawTraceIsUnmerged(t, store) })
	t.Run("UnknownTraceReturnsNil", func(t *testing.T) { testUnknownTraceReturnsNil(t, store) })
	t.Run("ServiceAndSpanNames", func(t *testing.T) { testServiceAndSpanNames(t, store) })
	t.Run("QueryByCriteria", func(t *testing.T) { testQueryByCriteria(t, store) })
	t.Run("DependencyLinks", func(t *testing.T) { testDependencyLinks(t, store, deps) })
	t.Run("RejectsMissingServiceName", func(t *testing.T) { testRejectsMissingServiceName(t, store) })
	t.Run("RejectsNegativeLimit", func(t *testing.T) { testRejectsNegativeLimit(t, store) })
	t.Run("ServiceNameIsCaseNormalizedAtWrite", func(t *testing.T) { testServiceNameIsCaseNormalizedAtWrite(t, store) })
}

func testAcceptAndGetTrace(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "scenario-svc-1"}
	span := model.Span{
		TraceID: 1001, ID: 1, Name: "get", Timestamp: ptr(1_000_000), Duration: ptr(500),
		Annotations: []model.Annotation{{Timestamp: 1_000_000, Value: model.ServerRecv, Endpoint: ep}},
	}
	require.NoError(t, store.Accept(ctx, []model.Span{span}))

	trace, err := store.GetTrace(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, "get", trace[0].Name)
	assert.Equal(t, int64(500), *trace[0].Duration)
}

func testMergesDuplicateReports(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1002, ID: 1, Name: "unknown", Timestamp: ptr(2_000_000)}}))
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1002, ID: 1, Name: "get", Duration: ptr(75)}}))

	trace, err := store.GetTrace(ctx, 1002)
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, "get", trace[0].Name)
	assert.Equal(t, int64(75), *trace[0].Duration)
}

func testGetRawTraceIsUnmerged(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1003, ID: 1, Name: "unknown"}}))
	require.NoError(t, store.Accept(ctx, []model.Span{{TraceID: 1003, ID: 1, Name: "get"}}))

	raw, err := store.GetRawTrace(ctx, 1003)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func testUnknownTraceReturnsNil(t *testing.T, store spanstore.Store) {
	trace, err := store.GetTrace(context.Background(), 999999)
	require.NoError(t, err)
	assert.Nil(t, trace)
}

func testServiceAndSpanNames(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "scenario-svc-2"}
	require.NoError(t, store.Accept(ctx, []model.Span{{
		TraceID: 1004, ID: 1, Name: "scenario-op",
		Annotations: []model.Annotation{{Value: model.ServerRecv, Endpoint: ep}},
	}}))

	services, err := store.GetServiceNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, services, "scenario-svc-2")

	names, err := store.GetSpanNames(ctx, "SCENARIO-SVC-2")
	require.NoError(t, err)
	assert.Contains(t, names, "scenario-op")
}

func testQueryByCriteria(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "scenario-svc-3"}
	for i := int64(0); i < 3; i++ {
		ts := 3_000_000 + i*1000
		span := model.Span{
			TraceID: 1005 + i, ID: 1, Name: "scenario-op-3", Timestamp: ptr(ts),
			Annotations: []model.Annotation{{Timestamp: ts, Value: model.ServerRecv, Endpoint: ep}},
		}
		require.NoError(t, store.Accept(ctx, []model.Span{span}))
	}

	req := model.QueryRequest{
		ServiceName: "scenario-svc-3",
		SpanName:    "scenario-op-3",
		EndTs:       3001,
		Lookback:    3001,
		Limit:       2,
	}
	traces, err := store.GetTraces(ctx, req)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	// Newest (highest start timestamp) trace sorts first.
	assert.Equal(t, int64(1006), traces[0][0].TraceID)
	assert.Equal(t, int64(1005), traces[1][0].TraceID)
}

func testDependencyLinks(t *testing.T, store spanstore.Store, deps dependencystore.Reader) {
	ctx := context.Background()
	frontend := &model.Endpoint{ServiceName: "scenario-frontend"}
	backend := &model.Endpoint{ServiceName: "scenario-backend"}
	parentID := int64(1)

	require.NoError(t, store.Accept(ctx, []model.Span{
		{TraceID: 1010, ID: 1, Timestamp: ptr(4_000_000),
			Annotations: []model.Annotation{{Timestamp: 4_000_000, Value: model.ServerRecv, Endpoint: frontend}}},
		{TraceID: 1010, ID: 2, ParentID: &parentID, Timestamp: ptr(4_000_100),
			Annotations: []model.Annotation{{Timestamp: 4_000_100, Value: model.ServerRecv, Endpoint: backend}}},
	}))

	links, err := deps.GetDependencies(ctx, 5000, nil)
	require.NoError(t, err)
	var found bool
	for _, l := range links {
		if l.Parent == "scenario-frontend" && l.Child == "scenario-backend" {
			found = true
		}
	}
	assert.True(t, found, "expected scenario-frontend -> scenario-backend among %v", links)
}

func testRejectsMissingServiceName(t *testing.T, store spanstore.Store) {
	_, err := store.GetTraces(context.Background(), model.QueryRequest{EndTs: 1, Lookback: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storeerr.ErrBadRequest))
}

func testRejectsNegativeLimit(t *testing.T, store spanstore.Store) {
	_, err := store.GetTraces(context.Background(), model.QueryRequest{
		ServiceName: "scenario-svc-4", EndTs: 1, Lookback: 1, Limit: -1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storeerr.ErrBadRequest))
}

// testServiceNameIsCaseNormalizedAtWrite reproduces the scenario spec.md §3,
// §4 and redesign flag P6 require: a span reported with a mixed-case
// Endpoint.ServiceName must still be findable through a lowercase query,
// since QueryRequest.Normalize lowercases the query side unconditionally.
func testServiceNameIsCaseNormalizedAtWrite(t *testing.T, store spanstore.Store) {
	ctx := context.Background()
	ep := &model.Endpoint{ServiceName: "Frontend"}
	require.NoError(t, store.Accept(ctx, []model.Span{{
		TraceID: 1011, ID: 1, Name: "GetUser", Timestamp: ptr(1),
		Annotations: []model.Annotation{{Timestamp: 1, Value: model.ServerRecv, Endpoint: ep}},
	}}))

	traces, err := store.GetTraces(ctx, model.QueryRequest{
		ServiceName: "frontend", EndTs: 1, Lookback: 1,
	})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "getuser", traces[0][0].Name)

	services, err := store.GetServiceNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, services, "frontend")
	assert.NotContains(t, services, "Frontend")
}
