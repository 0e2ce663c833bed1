// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"sort"
	"strings"
)

// Span is an immutable record of one unit of work within a trace, identified
// by (TraceID, ID). Callers must not mutate a Span received from a store;
// every accessor below returns a value, never a pointer into the receiver's
// slices.
type Span struct {
	TraceID           int64              `json:"traceId"`
	ID                int64              `json:"id"`
	ParentID          *int64             `json:"parentId,omitempty"`
	Name              string             `json:"name"`
	Timestamp         *int64             `json:"timestamp,omitempty"`
	Duration          *int64             `json:"duration,omitempty"`
	Debug             bool               `json:"debug,omitempty"`
	Annotations       []Annotation       `json:"annotations"`
	BinaryAnnotations []BinaryAnnotation `json:"binaryAnnotations"`
}

// NewSpan returns a Span with a lowercased name and sorted annotation lists,
// matching the canonical form spec.md §3 requires of every stored span.
func NewSpan(traceID, id int64, parentID *int64, name string, timestamp, duration *int64, debug bool, annotations []Annotation, binaryAnnotations []BinaryAnnotation) Span {
	s := Span{
		TraceID:           traceID,
		ID:                id,
		ParentID:          parentID,
		Name:              strings.ToLower(name),
		Timestamp:         timestamp,
		Duration:          duration,
		Debug:             debug,
		Annotations:       append([]Annotation(nil), annotations...),
		BinaryAnnotations: append([]BinaryAnnotation(nil), binaryAnnotations...),
	}
	sort.SliceStable(s.Annotations, func(i, j int) bool { return annotationLess(s.Annotations[i], s.Annotations[j]) })
	sort.SliceStable(s.BinaryAnnotations, func(i, j int) bool {
		return binaryAnnotationLess(s.BinaryAnnotations[i], s.BinaryAnnotations[j])
	})
	return s
}

// IsUnnamed reports whether the span's name is unset for merge purposes
// (spec.md §3): empty or the literal "unknown".
func (s Span) IsUnnamed() bool {
	return s.Name == "" || s.Name == "unknown"
}

// ServiceNames returns the distinct, lowercased service names found across
// this span's annotation and binary-annotation endpoints (spec.md §4.5 step 3).
func (s Span) ServiceNames() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(e *Endpoint) {
		if e == nil || e.ServiceName == "" {
			return
		}
		if _, ok := seen[e.ServiceName]; ok {
			return
		}
		seen[e.ServiceName] = struct{}{}
		names = append(names, e.ServiceName)
	}
	for _, a := range s.Annotations {
		add(a.Endpoint)
	}
	for _, b := range s.BinaryAnnotations {
		add(b.Endpoint)
	}
	return names
}

// Less implements the within-trace span ordering from spec.md §3:
// (timestamp ASC, id ASC), with a null timestamp sorting first.
func (s Span) Less(o Span) bool {
	st, ot := s.Timestamp, o.Timestamp
	switch {
	case st == nil && ot == nil:
		return s.ID < o.ID
	case st == nil:
		return true
	case ot == nil:
		return false
	case *st != *ot:
		return *st < *ot
	default:
		return s.ID < o.ID
	}
}

// CompareRootsDescending implements the between-trace ordering from spec.md
// §3: root spans compare by (timestamp DESC, id DESC), with a null timestamp
// sorting last. It reports whether left should sort before right, the shape
// of a sort.Slice less function.
func CompareRootsDescending(left, right Span) bool {
	lt, rt := left.Timestamp, right.Timestamp
	switch {
	case lt == nil && rt == nil:
		return left.ID > right.ID
	case lt == nil:
		return false
	case rt == nil:
		return true
	case *lt != *rt:
		return *lt > *rt
	default:
		return left.ID > right.ID
	}
}

// SortTracesDescending sorts traces (lists of merged spans, root first) by
// their root span's (timestamp DESC, id DESC), per spec.md §3 and §4.5 step 3.
func SortTracesDescending(traces [][]Span) {
	sort.SliceStable(traces, func(i, j int) bool {
		return CompareRootsDescending(traces[i][0], traces[j][0])
	})
}
