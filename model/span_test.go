// Copyright (c) 2017 Uber Technologies, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ts(v int64) *int64 { return &v }

func TestIsUnnamed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"unknown", true},
		{"get", false},
	}
	for _, tt := range tests {
		span := Span{Name: tt.name}
		assert.Equal(t, tt.want, span.IsUnnamed(), tt.name)
	}
}

func TestServiceNamesDedupesAndOrders(t *testing.T) {
	span := Span{
		Annotations: []Annotation{
			{Value: ServerRecv, Endpoint: &Endpoint{ServiceName: "b"}},
			{Value: ServerSend, Endpoint: &Endpoint{ServiceName: "a"}},
		},
		BinaryAnnotations: []BinaryAnnotation{
			{Key: ClientAddr, Endpoint: &Endpoint{ServiceName: "a"}},
			{Key: "nil-endpoint", Endpoint: nil},
		},
	}
	assert.Equal(t, []string{"b", "a"}, span.ServiceNames())
}

func TestSpanLess(t *testing.T) {
	assert.True(t, Span{ID: 1, Timestamp: nil}.Less(Span{ID: 2, Timestamp: ts(5)}))
	assert.False(t, Span{ID: 1, Timestamp: ts(5)}.Less(Span{ID: 2, Timestamp: nil}))
	assert.True(t, Span{ID: 1, Timestamp: ts(1)}.Less(Span{ID: 2, Timestamp: ts(2)}))
	assert.True(t, Span{ID: 1, Timestamp: ts(1)}.Less(Span{ID: 2, Timestamp: ts(1)}))
}

func TestSortTracesDescending(t *testing.T) {
	older := []Span{{TraceID: 1, ID: 1, Timestamp: ts(100)}}
	newer := []Span{{TraceID: 2, ID: 1, Timestamp: ts(200)}}
	traces := [][]Span{older, newer}
	SortTracesDescending(traces)
	assert.Equal(t, int64(2), traces[0][0].TraceID)
	assert.Equal(t, int64(1), traces[1][0].TraceID)
}

func TestNewSpanLowercasesAndSorts(t *testing.T) {
	span := NewSpan(1, 2, nil, "GET", ts(10), nil, false,
		[]Annotation{{Timestamp: 2, Value: "b"}, {Timestamp: 1, Value: "a"}},
		[]BinaryAnnotation{{Key: "z"}, {Key: "a"}})
	assert.Equal(t, "get", span.Name)
	assert.Equal(t, "a", span.Annotations[0].Value)
	assert.Equal(t, "b", span.Annotations[1].Value)
	assert.Equal(t, "a", span.BinaryAnnotations[0].Key)
	assert.Equal(t, "z", span.BinaryAnnotations[1].Key)
}
