// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "strings"

// QueryRequest describes the criteria for a trace-search-by-criteria query
// (spec.md §3, §4.4). EndTs and Lookback are in milliseconds, per spec.md §6;
// everywhere else in the model these are microseconds.
type QueryRequest struct {
	ServiceName       string
	SpanName          string
	Annotations       []string
	BinaryAnnotations map[string]string
	MinDuration       *int64
	MaxDuration       *int64
	EndTs             int64
	Lookback          int64
	Limit             int
}

// Normalize lowercases the service name the way writes are lowercased
// (spec.md §3's "Service names are ASCII-lowercased at write and query time"),
// and fills in a default limit when the caller left it unset.
func (q QueryRequest) Normalize() QueryRequest {
	q.ServiceName = strings.ToLower(q.ServiceName)
	if q.Limit <= 0 {
		q.Limit = 10
	}
	return q
}

// MicroEndTs returns the query's end timestamp in microseconds.
func (q QueryRequest) MicroEndTs() int64 {
	return millisToMicros(q.EndTs)
}

// MicroLookback returns the query's lookback window in microseconds.
func (q QueryRequest) MicroLookback() int64 {
	return millisToMicros(q.Lookback)
}
