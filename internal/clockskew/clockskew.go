// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package clockskew implements the clock-skew correction heuristic of
// spec.md §4.3, packaged as a jaeger-style Adjuster so it composes with other
// trace-shaping passes the way jaeger's model/adjuster.Sequence does.
package clockskew

import "github.com/jaegertracing/tracestore/model"

// Adjuster modifies a merged trace, returning the adjusted spans.
type Adjuster interface {
	Adjust(trace []model.Span) []model.Span
}

// Func adapts a plain function to the Adjuster interface.
type Func func(trace []model.Span) []model.Span

// Adjust implements Adjuster.
func (f Func) Adjust(trace []model.Span) []model.Span { return f(trace) }

// Sequence composes adjusters, applying each in order to the output of the
// previous one.
func Sequence(adjusters ...Adjuster) Adjuster {
	return Func(func(trace []model.Span) []model.Span {
		for _, a := range adjusters {
			trace = a.Adjust(trace)
		}
		return trace
	})
}

// New returns the clock-skew-correcting Adjuster described in spec.md §4.3.
func New() Adjuster {
	return Func(Correct)
}

// Correct shifts per-host subtrees of a merged trace so that children fall
// within their parent's window, per spec.md §4.3. It is a best-effort
// heuristic: it never fails. A span whose parent is missing from the trace or
// is the span itself is treated as a root; spans in a longer parent cycle, and
// their descendants, are never reached from a root and are returned unshifted,
// and a visited set keeps the walk from entering a span twice (spec.md §9).
func Correct(trace []model.Span) []model.Span {
	if len(trace) == 0 {
		return trace
	}

	byID := make(map[int64]*model.Span, len(trace))
	order := make([]int64, 0, len(trace))
	for i := range trace {
		cp := trace[i]
		cp.Annotations = append([]model.Annotation(nil), trace[i].Annotations...)
		cp.BinaryAnnotations = append([]model.BinaryAnnotation(nil), trace[i].BinaryAnnotations...)
		byID[cp.ID] = &cp
		order = append(order, cp.ID)
	}

	children := make(map[int64][]int64)
	var roots []int64
	for _, id := range order {
		span := byID[id]
		if span.ParentID == nil || *span.ParentID == span.ID {
			roots = append(roots, id)
			continue
		}
		if _, ok := byID[*span.ParentID]; !ok {
			roots = append(roots, id)
			continue
		}
		children[*span.ParentID] = append(children[*span.ParentID], id)
	}

	visited := make(map[int64]bool, len(trace))
	for _, rid := range roots {
		walk(byID, children, visited, rid, hostEndpoint(byID[rid]), 0)
	}

	out := make([]model.Span, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func walk(byID map[int64]*model.Span, children map[int64][]int64, visited map[int64]bool, id int64, inheritedHost *model.Endpoint, inheritedSkew int64) {
	if visited[id] {
		return
	}
	visited[id] = true

	span := byID[id]
	thisHost := hostEndpoint(span)
	appliedSkew := int64(0)
	if thisHost != nil && thisHost.Equal(inheritedHost) {
		appliedSkew = inheritedSkew
	}
	if appliedSkew != 0 {
		shift(span, appliedSkew)
	}

	for _, cid := range children[id] {
		child := byID[cid]
		childHost := hostEndpoint(child)

		cs, hasCS := findAnnotation(span, model.ClientSend)
		sr, hasSR := findAnnotation(child, model.ServerRecv)

		if hasCS && hasSR {
			skew := cs.Timestamp - sr.Timestamp
			if span.Duration != nil && child.Duration != nil {
				skew = cs.Timestamp + (*span.Duration-*child.Duration)/2 - sr.Timestamp
			}
			if skew != 0 && !withinParentWindow(span, child) {
				walk(byID, children, visited, cid, childHost, skew)
				continue
			}
		}

		// No skew could be computed at this level (or the child already fits
		// inside the parent window). Descendants on the same host endpoint as
		// this span still inherit whatever skew was already applied to it;
		// sibling subtrees on other hosts start fresh, per spec.md §4.3 step 3.
		if childHost != nil && childHost.Equal(thisHost) {
			walk(byID, children, visited, cid, childHost, appliedSkew)
		} else {
			walk(byID, children, visited, cid, childHost, 0)
		}
	}
}

// hostEndpoint derives a span's host from the first core annotation
// (SERVER_RECV or CLIENT_SEND) carrying an endpoint, per spec.md §4.3 step 2.
func hostEndpoint(span *model.Span) *model.Endpoint {
	for _, a := range span.Annotations {
		if (a.Value == model.ServerRecv || a.Value == model.ClientSend) && a.Endpoint != nil {
			ep := *a.Endpoint
			return &ep
		}
	}
	return nil
}

func findAnnotation(span *model.Span, value string) (model.Annotation, bool) {
	for _, a := range span.Annotations {
		if a.Value == value {
			return a, true
		}
	}
	return model.Annotation{}, false
}

// withinParentWindow reports whether the child's span already lies inside the
// parent's timestamp/duration window, in which case spec.md §4.3 step 4 says
// it must never be shifted.
func withinParentWindow(parent, child *model.Span) bool {
	if parent.Timestamp == nil || child.Timestamp == nil {
		return false
	}
	parentStart := *parent.Timestamp
	parentEnd := parentStart
	if parent.Duration != nil {
		parentEnd = parentStart + *parent.Duration
	}
	childStart := *child.Timestamp
	childEnd := childStart
	if child.Duration != nil {
		childEnd = childStart + *child.Duration
	}
	return childStart >= parentStart && childEnd <= parentEnd
}

// shift applies a skew (in microseconds) to a span's timestamp and every
// annotation's timestamp.
func shift(span *model.Span, skew int64) {
	if span.Timestamp != nil {
		ts := *span.Timestamp + skew
		span.Timestamp = &ts
	}
	for i := range span.Annotations {
		span.Annotations[i].Timestamp += skew
	}
}
