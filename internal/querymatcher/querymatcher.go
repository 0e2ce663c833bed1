// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package querymatcher evaluates a QueryRequest predicate against a
// reconstructed trace, per spec.md §4.4.
package querymatcher

import "github.com/jaegertracing/tracestore/model"

// Test reports whether trace satisfies every criterion of req. Query matching
// is total (spec.md §7): any predicate over absent data evaluates to false,
// never panics or errors.
func Test(req model.QueryRequest, trace []model.Span) bool {
	if len(trace) == 0 {
		return false
	}

	root := trace[0]
	if root.Timestamp == nil {
		return false
	}
	lo := req.MicroEndTs() - req.MicroLookback()
	hi := req.MicroEndTs()
	if *root.Timestamp < lo || *root.Timestamp > hi {
		return false
	}

	remainingAnnotations := make(map[string]struct{}, len(req.Annotations))
	for _, a := range req.Annotations {
		remainingAnnotations[a] = struct{}{}
	}
	remainingBinary := make(map[string]string, len(req.BinaryAnnotations))
	for k, v := range req.BinaryAnnotations {
		remainingBinary[k] = v
	}

	serviceNames := make(map[string]struct{})
	spanName := req.SpanName
	testedDuration := req.MinDuration == nil && req.MaxDuration == nil

	for _, span := range trace {
		current := make(map[string]struct{})

		for _, a := range span.Annotations {
			delete(remainingAnnotations, a.Value)
			if a.Endpoint != nil {
				serviceNames[a.Endpoint.ServiceName] = struct{}{}
				current[a.Endpoint.ServiceName] = struct{}{}
			}
		}

		for _, b := range span.BinaryAnnotations {
			if b.Type == model.StringType {
				if want, ok := remainingBinary[b.Key]; ok && want == string(b.Value) {
					delete(remainingBinary, b.Key)
				}
			}
			if b.Endpoint != nil {
				serviceNames[b.Endpoint.ServiceName] = struct{}{}
				current[b.Endpoint.ServiceName] = struct{}{}
			}
		}

		if !testedDuration {
			if _, ok := current[req.ServiceName]; ok && span.Duration != nil {
				switch {
				case req.MinDuration != nil && req.MaxDuration != nil:
					testedDuration = *span.Duration >= *req.MinDuration && *span.Duration <= *req.MaxDuration
				case req.MinDuration != nil:
					testedDuration = *span.Duration >= *req.MinDuration
				case req.MaxDuration != nil:
					testedDuration = *span.Duration <= *req.MaxDuration
				}
			}
		}

		if spanName != "" && span.Name == spanName {
			spanName = ""
		}
	}

	_, hasService := serviceNames[req.ServiceName]
	return hasService &&
		spanName == "" &&
		len(remainingAnnotations) == 0 &&
		len(remainingBinary) == 0 &&
		testedDuration
}
