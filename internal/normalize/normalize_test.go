// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaegertracing/tracestore/model"
)

func ptr(v int64) *int64 { return &v }

func TestApplyTimestampAndDurationLeavesExplicitValuesAlone(t *testing.T) {
	span := model.Span{Timestamp: ptr(10), Duration: ptr(5)}
	got := ApplyTimestampAndDuration(span)
	assert.Equal(t, int64(10), *got.Timestamp)
	assert.Equal(t, int64(5), *got.Duration)
}

func TestApplyTimestampAndDurationNoAnnotations(t *testing.T) {
	span := model.Span{}
	got := ApplyTimestampAndDuration(span)
	assert.Nil(t, got.Timestamp)
	assert.Nil(t, got.Duration)
}

func TestApplyTimestampAndDurationDerivesFromAnnotations(t *testing.T) {
	span := model.Span{
		Annotations: []model.Annotation{
			{Timestamp: 100, Value: model.ClientSend},
			{Timestamp: 150, Value: model.ServerRecv},
			{Timestamp: 200, Value: model.ClientRecv},
		},
	}
	got := ApplyTimestampAndDuration(span)
	assert.Equal(t, int64(100), *got.Timestamp)
	assert.Equal(t, int64(100), *got.Duration)
}

func TestApplyTimestampAndDurationSingleAnnotationNoDuration(t *testing.T) {
	span := model.Span{Annotations: []model.Annotation{{Timestamp: 100, Value: model.ClientSend}}}
	got := ApplyTimestampAndDuration(span)
	assert.Equal(t, int64(100), *got.Timestamp)
	assert.Nil(t, got.Duration)
}

func TestApplyTimestampAndDurationLowercasesNameAndEndpoints(t *testing.T) {
	ep := &model.Endpoint{ServiceName: "Frontend"}
	span := model.Span{
		Name:              "GET",
		Annotations:       []model.Annotation{{Timestamp: 1, Value: model.ServerRecv, Endpoint: ep}},
		BinaryAnnotations: []model.BinaryAnnotation{{Key: "http.status", Endpoint: ep}},
	}
	got := ApplyTimestampAndDuration(span)
	assert.Equal(t, "get", got.Name)
	assert.Equal(t, "frontend", got.Annotations[0].Endpoint.ServiceName)
	assert.Equal(t, "frontend", got.BinaryAnnotations[0].Endpoint.ServiceName)
	assert.Equal(t, "Frontend", ep.ServiceName, "caller's Endpoint must not be mutated")
}
