// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge combines partially-reported copies of the same span into one
// canonical span, per spec.md §4.2.
package merge

import (
	"sort"

	"github.com/jaegertracing/tracestore/model"
)

type spanKey struct {
	traceID int64
	id      int64
}

// ByID combines spans sharing a (TraceID, ID) into one, applying the
// deterministic field-precedence rules of spec.md §4.2. The result is ordered
// by the merged span's (timestamp ASC, id ASC), null timestamps first.
func ByID(spans []model.Span) []model.Span {
	order := make([]spanKey, 0, len(spans))
	groups := make(map[spanKey][]model.Span, len(spans))
	for _, s := range spans {
		k := spanKey{s.TraceID, s.ID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	out := make([]model.Span, 0, len(order))
	for _, k := range order {
		out = append(out, mergeGroup(groups[k]))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func mergeGroup(copies []model.Span) model.Span {
	merged := model.Span{
		TraceID: copies[0].TraceID,
		ID:      copies[0].ID,
	}

	for _, c := range copies {
		if merged.Name == "" && !c.IsUnnamed() {
			merged.Name = c.Name
		}
		if c.Timestamp != nil && (merged.Timestamp == nil || *c.Timestamp < *merged.Timestamp) {
			ts := *c.Timestamp
			merged.Timestamp = &ts
		}
		if c.Duration != nil && (merged.Duration == nil || *c.Duration > *merged.Duration) {
			d := *c.Duration
			merged.Duration = &d
		}
		merged.Debug = merged.Debug || c.Debug
		if merged.ParentID == nil && c.ParentID != nil {
			pid := *c.ParentID
			merged.ParentID = &pid
		}
		merged.Annotations = append(merged.Annotations, c.Annotations...)
		merged.BinaryAnnotations = append(merged.BinaryAnnotations, c.BinaryAnnotations...)
	}

	merged.Annotations = dedupeAnnotations(merged.Annotations)
	merged.BinaryAnnotations = dedupeBinaryAnnotations(merged.BinaryAnnotations)
	return merged
}

func dedupeAnnotations(anns []model.Annotation) []model.Annotation {
	out := make([]model.Annotation, 0, len(anns))
	for _, a := range anns {
		dup := false
		for _, o := range out {
			if a.Equal(o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func dedupeBinaryAnnotations(anns []model.BinaryAnnotation) []model.BinaryAnnotation {
	out := make([]model.BinaryAnnotation, 0, len(anns))
	for _, a := range anns {
		dup := false
		for _, o := range out {
			if a.Equal(o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
