// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package querymatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaegertracing/tracestore/model"
)

func ptr(v int64) *int64 { return &v }

func sampleTrace() []model.Span {
	ep := &model.Endpoint{ServiceName: "frontend"}
	return []model.Span{
		{
			TraceID: 1, ID: 1, Name: "get", Timestamp: ptr(1000), Duration: ptr(500),
			Annotations:       []model.Annotation{{Timestamp: 1000, Value: "sr", Endpoint: ep}},
			BinaryAnnotations: []model.BinaryAnnotation{{Key: "http.status", Value: []byte("200"), Type: model.StringType, Endpoint: ep}},
		},
	}
}

func TestTestMatchesOnServiceAndSpanName(t *testing.T) {
	req := model.QueryRequest{ServiceName: "frontend", SpanName: "get", EndTs: 2, Lookback: 2}
	assert.True(t, Test(req, sampleTrace()))
}

func TestTestFailsOnUnknownService(t *testing.T) {
	req := model.QueryRequest{ServiceName: "other", EndTs: 2, Lookback: 2}
	assert.False(t, Test(req, sampleTrace()))
}

func TestTestFailsOnMissingAnnotation(t *testing.T) {
	req := model.QueryRequest{ServiceName: "frontend", Annotations: []string{"cs"}, EndTs: 2, Lookback: 2}
	assert.False(t, Test(req, sampleTrace()))
}

func TestTestMatchesBinaryAnnotation(t *testing.T) {
	req := model.QueryRequest{
		ServiceName:       "frontend",
		BinaryAnnotations: map[string]string{"http.status": "200"},
		EndTs:             2, Lookback: 2,
	}
	assert.True(t, Test(req, sampleTrace()))
}

func TestTestDurationBounds(t *testing.T) {
	min := int64(100)
	max := int64(1000)
	req := model.QueryRequest{ServiceName: "frontend", MinDuration: &min, MaxDuration: &max, EndTs: 2, Lookback: 2}
	assert.True(t, Test(req, sampleTrace()))

	tooHigh := int64(501)
	req.MinDuration = &tooHigh
	assert.False(t, Test(req, sampleTrace()))
}

func TestTestOutsideTimeWindow(t *testing.T) {
	req := model.QueryRequest{ServiceName: "frontend", EndTs: 0, Lookback: 0}
	assert.False(t, Test(req, sampleTrace()))
}

func TestTestEmptyTrace(t *testing.T) {
	req := model.QueryRequest{ServiceName: "frontend"}
	assert.False(t, Test(req, nil))
}
