// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package dependencylinker reconstructs the parent/child tree of a trace and
// emits service-to-service call edges, per spec.md §4.7.
package dependencylinker

import (
	"sort"

	"github.com/jaegertracing/tracestore/model"
)

// Span is the subset of a merged model.Span the linker needs: the four
// fields derivable from its annotations, per spec.md §4.7.
type Span struct {
	ParentID  *int64
	ID        int64
	CAService string
	SAService string
	SRService string
	IsError   bool
}

// Extract derives a dependencylinker.Span from a merged span's annotations.
func Extract(span model.Span) Span {
	out := Span{ParentID: span.ParentID, ID: span.ID}
	for _, b := range span.BinaryAnnotations {
		switch b.Key {
		case model.ClientAddr:
			if b.Endpoint != nil {
				out.CAService = b.Endpoint.ServiceName
			}
		case model.ServerAddr:
			if b.Endpoint != nil {
				out.SAService = b.Endpoint.ServiceName
			}
		}
		if b.Key == model.ErrorAnnValue {
			out.IsError = true
		}
	}
	for _, a := range span.Annotations {
		if a.Value == model.ServerRecv && a.Endpoint != nil && out.SRService == "" {
			out.SRService = a.Endpoint.ServiceName
		}
		if a.Value == model.ErrorAnnValue {
			out.IsError = true
		}
	}
	return out
}

type linkKey struct {
	parent, child string
}

// Linker accumulates DependencyLinks across one or more traces.
type Linker struct {
	links map[linkKey]*model.DependencyLink
}

// New returns an empty Linker.
func New() *Linker {
	return &Linker{links: make(map[linkKey]*model.DependencyLink)}
}

// PutTrace folds one trace's extracted spans into the linker's running
// aggregate. Degenerate traces (zero or one span) contribute no edges.
func (l *Linker) PutTrace(spans []Span) {
	if len(spans) < 2 {
		return
	}

	byID := make(map[int64]Span, len(spans))
	for _, s := range spans {
		byID[s.ID] = s
	}

	for _, s := range spans {
		if s.ParentID == nil || *s.ParentID == s.ID {
			continue // root, or a malformed self-loop (spec.md §9)
		}

		switch {
		case s.SRService != "":
			if caller := callerService(byID, *s.ParentID, map[int64]bool{}); caller != "" {
				l.add(caller, s.SRService, s.IsError)
			}
		case s.SAService != "":
			if s.CAService != "" {
				l.add(s.CAService, s.SAService, s.IsError)
			}
		}
		// A span with neither SRService nor SAService is a local span: it
		// contributes no edge, but callerService still walks through it when
		// resolving a descendant's caller.
	}
}

// callerService resolves the service identity the span named by id presents
// to its children: "parent.srService or parent.caService" (spec.md §9). If
// the span is itself a local span — missing both srService and saService,
// the same predicate spec.md §9 uses to decide a span contributes no edge —
// its parentId is walked past to find the nearest non-local ancestor, since
// a local span was never observed to identify any service.
func callerService(byID map[int64]Span, id int64, visited map[int64]bool) string {
	if visited[id] {
		return ""
	}
	visited[id] = true

	span, ok := byID[id]
	if !ok {
		return ""
	}
	if span.SRService == "" && span.SAService == "" {
		if span.ParentID == nil || *span.ParentID == span.ID {
			return ""
		}
		return callerService(byID, *span.ParentID, visited)
	}
	if span.SRService != "" {
		return span.SRService
	}
	return span.CAService
}

func (l *Linker) add(parent, child string, isError bool) {
	k := linkKey{parent, child}
	link, ok := l.links[k]
	if !ok {
		link = &model.DependencyLink{Parent: parent, Child: child}
		l.links[k] = link
	}
	link.CallCount++
	if isError {
		link.ErrorCount++
	}
}

// Link returns the accumulated links, sorted by (parent, child) for a
// deterministic result.
func (l *Linker) Link() []model.DependencyLink {
	out := make([]model.DependencyLink, 0, len(l.links))
	for _, link := range l.links {
		out = append(out, *link)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		return out[i].Child < out[j].Child
	})
	return out
}
