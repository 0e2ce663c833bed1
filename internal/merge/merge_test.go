// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegertracing/tracestore/model"
)

func ptr(v int64) *int64 { return &v }

func TestByIDMergesDuplicateReports(t *testing.T) {
	spans := []model.Span{
		{TraceID: 1, ID: 1, Name: "unknown", Timestamp: ptr(100),
			Annotations: []model.Annotation{{Timestamp: 100, Value: model.ClientSend}}},
		{TraceID: 1, ID: 1, Name: "get", Duration: ptr(50),
			Annotations: []model.Annotation{{Timestamp: 150, Value: model.ServerRecv}}},
	}
	merged := ByID(spans)
	require.Len(t, merged, 1)
	assert.Equal(t, "get", merged[0].Name)
	assert.Equal(t, int64(100), *merged[0].Timestamp)
	assert.Equal(t, int64(50), *merged[0].Duration)
	assert.Len(t, merged[0].Annotations, 2)
}

func TestByIDKeepsDistinctIDsSeparateAndOrders(t *testing.T) {
	spans := []model.Span{
		{TraceID: 1, ID: 2, Timestamp: ptr(200)},
		{TraceID: 1, ID: 1, Timestamp: ptr(100)},
	}
	merged := ByID(spans)
	require.Len(t, merged, 2)
	assert.Equal(t, int64(1), merged[0].ID)
	assert.Equal(t, int64(2), merged[1].ID)
}

func TestByIDPrefersLongerDurationAndFirstParent(t *testing.T) {
	parent := int64(9)
	spans := []model.Span{
		{TraceID: 1, ID: 1, ParentID: &parent, Duration: ptr(10)},
		{TraceID: 1, ID: 1, Duration: ptr(30)},
	}
	merged := ByID(spans)
	require.Len(t, merged, 1)
	assert.Equal(t, int64(30), *merged[0].Duration)
	require.NotNil(t, merged[0].ParentID)
	assert.Equal(t, parent, *merged[0].ParentID)
}

func TestByIDDedupesIdenticalAnnotations(t *testing.T) {
	ep := &model.Endpoint{ServiceName: "svc"}
	spans := []model.Span{
		{TraceID: 1, ID: 1, Annotations: []model.Annotation{{Timestamp: 1, Value: "sr", Endpoint: ep}}},
		{TraceID: 1, ID: 1, Annotations: []model.Annotation{{Timestamp: 1, Value: "sr", Endpoint: ep}}},
	}
	merged := ByID(spans)
	require.Len(t, merged, 1)
	assert.Len(t, merged[0].Annotations, 1)
}
