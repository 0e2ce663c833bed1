// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package normalize puts an incoming Span into the canonical form spec.md §3
// requires before a store indexes or persists it: timestamp/duration derived
// from annotations when the reporter didn't supply them (§4.1), and span/
// service names lowercased (§3, §4, P6).
package normalize

import (
	"strings"

	"github.com/jaegertracing/tracestore/model"
)

// ApplyTimestampAndDuration fills in timestamp/duration when they are
// inferable from annotations, lowercases the span's name and every endpoint
// service name reachable from its annotations, and returns the resulting
// span. It never fails.
func ApplyTimestampAndDuration(span model.Span) model.Span {
	span.Name = strings.ToLower(span.Name)

	annotations := make([]model.Annotation, len(span.Annotations))
	for i, a := range span.Annotations {
		a.Endpoint = lowercasedEndpoint(a.Endpoint)
		annotations[i] = a
	}
	span.Annotations = annotations

	binaryAnnotations := make([]model.BinaryAnnotation, len(span.BinaryAnnotations))
	for i, b := range span.BinaryAnnotations {
		b.Endpoint = lowercasedEndpoint(b.Endpoint)
		binaryAnnotations[i] = b
	}
	span.BinaryAnnotations = binaryAnnotations

	if span.Timestamp != nil && span.Duration != nil {
		return span
	}
	if len(span.Annotations) == 0 {
		return span
	}

	first := span.Annotations[0].Timestamp
	last := span.Annotations[0].Timestamp
	for _, a := range span.Annotations[1:] {
		if a.Timestamp < first {
			first = a.Timestamp
		}
		if a.Timestamp > last {
			last = a.Timestamp
		}
	}

	if span.Timestamp == nil {
		ts := first
		span.Timestamp = &ts
	}
	if span.Duration == nil && last > first {
		d := last - first
		span.Duration = &d
	}
	return span
}

// lowercasedEndpoint returns a copy of e with its service name lowercased,
// leaving the original (possibly shared) Endpoint untouched. Nil passes
// through unchanged.
func lowercasedEndpoint(e *model.Endpoint) *model.Endpoint {
	if e == nil {
		return nil
	}
	out := model.NewEndpoint(e.ServiceName, e.IPv4, e.Port)
	return &out
}
