// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory implements an unbounded in-memory span store, grounded on
// jaeger's plugin/storage/memory.Store (one mutex guarding every index) and
// the original zipkin.InMemorySpanStore's three multimap shapes, per
// spec.md §4.5 and §9.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jaegertracing/tracestore/internal/clockskew"
	"github.com/jaegertracing/tracestore/internal/dependencylinker"
	"github.com/jaegertracing/tracestore/internal/merge"
	"github.com/jaegertracing/tracestore/internal/normalize"
	"github.com/jaegertracing/tracestore/internal/querymatcher"
	"github.com/jaegertracing/tracestore/model"
	"github.com/jaegertracing/tracestore/pkg/storeerr"
	"github.com/jaegertracing/tracestore/storage/dependencystore"
	"github.com/jaegertracing/tracestore/storage/spanstore"
)

// traceTimestamp pairs a trace id with the timestamp used to order it within
// a service's index; unset timestamps sort last (spec.md §4.5).
type traceTimestamp struct {
	traceID   int64
	timestamp int64
}

const noTimestamp = int64(math.MinInt64)

// Store is an unbounded in-memory span store. All three indexes are mutated
// under a single mutex, per spec.md §5: the whole store is the locking
// granularity because the indexes must stay mutually consistent.
type Store struct {
	mu sync.RWMutex

	traceIndex map[int64][]model.Span

	// serviceToTraces holds, per service, the distinct (traceId, timestamp)
	// pairs reported for it, kept sorted by (timestamp DESC, traceId DESC).
	serviceToTraces map[string][]traceTimestamp

	// serviceToSpanNames holds, per service, the span names reported for it
	// in first-seen order, deduplicated.
	serviceToSpanNames map[string][]string
	spanNameSeen       map[string]map[string]struct{}
	acceptedSpanCount  int
	logger             *zap.Logger
}

// New returns an empty Store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		traceIndex:         make(map[int64][]model.Span),
		serviceToTraces:    make(map[string][]traceTimestamp),
		serviceToSpanNames: make(map[string][]string),
		spanNameSeen:       make(map[string]map[string]struct{}),
		logger:             logger,
	}
}

var (
	_ spanstore.Store        = (*Store)(nil)
	_ dependencystore.Reader = (*Store)(nil)
)

// Accept implements spanstore.Writer. Spans are normalized, appended to the
// raw trace index, and indexed by every service name they carry; duplicate
// merging happens lazily on read (spec.md §4.5).
func (s *Store) Accept(_ context.Context, spans []model.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, span := range spans {
		span = normalize.ApplyTimestampAndDuration(span)
		s.traceIndex[span.TraceID] = append(s.traceIndex[span.TraceID], span)
		s.acceptedSpanCount++

		ts := noTimestamp
		if span.Timestamp != nil {
			ts = *span.Timestamp
		}
		for _, service := range span.ServiceNames() {
			s.insertTraceTimestamp(service, traceTimestamp{traceID: span.TraceID, timestamp: ts})
			s.insertSpanName(service, span.Name)
		}
	}
	return nil
}

// AcceptedSpanCount returns the number of spans ever accepted by this store,
// mirroring the teacher's diagnostic counter.
func (s *Store) AcceptedSpanCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acceptedSpanCount
}

func (s *Store) insertTraceTimestamp(service string, tt traceTimestamp) {
	list := s.serviceToTraces[service]
	i := sort.Search(len(list), func(i int) bool { return lessTraceTimestamp(tt, list[i]) || equalTraceTimestamp(tt, list[i]) })
	if i < len(list) && equalTraceTimestamp(list[i], tt) {
		return // already present: (traceId, ts) pairs dedupe, per spec.md §4.5
	}
	list = append(list, traceTimestamp{})
	copy(list[i+1:], list[i:])
	list[i] = tt
	s.serviceToTraces[service] = list
}

// lessTraceTimestamp orders by (timestamp DESC, traceId DESC): the order the
// service→trace index needs to satisfy query limits without re-sorting.
func lessTraceTimestamp(a, b traceTimestamp) bool {
	if a.timestamp != b.timestamp {
		return a.timestamp > b.timestamp
	}
	return a.traceID > b.traceID
}

func equalTraceTimestamp(a, b traceTimestamp) bool {
	return a.timestamp == b.timestamp && a.traceID == b.traceID
}

func (s *Store) insertSpanName(service, name string) {
	seen := s.spanNameSeen[service]
	if seen == nil {
		seen = make(map[string]struct{})
		s.spanNameSeen[service] = seen
	}
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	s.serviceToSpanNames[service] = append(s.serviceToSpanNames[service], name)
}

// GetTrace implements spanstore.Reader.
func (s *Store) GetTrace(_ context.Context, traceID int64) ([]model.Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTrace(traceID), nil
}

func (s *Store) getTrace(traceID int64) []model.Span {
	raw, ok := s.traceIndex[traceID]
	if !ok || len(raw) == 0 {
		return nil
	}
	return clockskew.Correct(merge.ByID(raw))
}

// GetRawTrace implements spanstore.Reader.
func (s *Store) GetRawTrace(_ context.Context, traceID int64) ([]model.Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.traceIndex[traceID]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	return append([]model.Span(nil), raw...), nil
}

// GetTraces implements spanstore.Reader, per spec.md §4.5's read path.
func (s *Store) GetTraces(_ context.Context, req model.QueryRequest) ([][]model.Span, error) {
	if req.ServiceName == "" {
		return nil, storeerr.Wrap(storeerr.ErrBadRequest, errors.New("serviceName is required"))
	}
	if req.Limit < 0 {
		return nil, storeerr.Wrap(storeerr.ErrBadRequest, errors.New("limit must be non-negative"))
	}
	req = req.Normalize()

	s.mu.RLock()
	traceIDs := s.traceIDsDescendingByTimestamp(req.ServiceName)
	result := make([][]model.Span, 0, req.Limit)
	for _, id := range traceIDs {
		trace := s.getTrace(id)
		if trace == nil {
			continue
		}
		if querymatcher.Test(req, trace) {
			result = append(result, trace)
		}
		if len(result) == req.Limit {
			break
		}
	}
	s.mu.RUnlock()

	model.SortTracesDescending(result)
	return result, nil
}

func (s *Store) traceIDsDescendingByTimestamp(service string) []int64 {
	list := s.serviceToTraces[service]
	out := make([]int64, 0, len(list))
	seen := make(map[int64]struct{}, len(list))
	for _, tt := range list {
		if _, ok := seen[tt.traceID]; ok {
			continue
		}
		seen[tt.traceID] = struct{}{}
		out = append(out, tt.traceID)
	}
	return out
}

// GetServiceNames implements spanstore.Reader.
func (s *Store) GetServiceNames(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.serviceToTraces))
	for name := range s.serviceToTraces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GetSpanNames implements spanstore.Reader.
func (s *Store) GetSpanNames(_ context.Context, service string) ([]string, error) {
	service = strings.ToLower(service)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]string(nil), s.serviceToSpanNames[service]...)
	sort.Strings(out)
	return out, nil
}

// GetDependencies derives the service-dependency graph across every stored
// trace within the window [endTs-lookback, endTs], both ends inclusive, per
// spec.md §4.7. endTs
// and lookback are in milliseconds; a nil lookback defaults to endTs itself
// (the entire history up to endTs), matching the original zipkin behavior.
func (s *Store) GetDependencies(_ context.Context, endTs int64, lookback *int64) ([]model.DependencyLink, error) {
	endTsMicro := endTs * 1000
	lookbackMicro := endTsMicro
	if lookback != nil {
		lookbackMicro = *lookback * 1000
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	linker := dependencylinker.New()
	for _, raw := range s.traceIndex {
		if len(raw) == 0 {
			continue
		}
		merged := clockskew.Correct(merge.ByID(raw))
		var extracted []dependencylinker.Span
		for _, span := range merged {
			if span.Timestamp == nil || *span.Timestamp < endTsMicro-lookbackMicro || *span.Timestamp > endTsMicro {
				continue
			}
			extracted = append(extracted, dependencylinker.Extract(span))
		}
		linker.PutTrace(extracted)
	}
	return linker.Link(), nil
}
