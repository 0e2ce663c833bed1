// Copyright (c) 2017 Uber Technologies, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics decorates a spanstore.Reader/Writer with call counters and
// latency timers, grounded on jaeger's storage/spanstore/metrics package.
package metrics

import (
	"context"
	"time"

	"github.com/uber/jaeger-lib/metrics"

	"github.com/jaegertracing/tracestore/model"
	"github.com/jaegertracing/tracestore/storage/spanstore"
)

type callMetrics struct {
	Errors     metrics.Counter `metric:"calls" tags:"result=err"`
	Successes  metrics.Counter `metric:"calls" tags:"result=ok"`
	Responses  metrics.Timer   `metric:"responses"`
	ErrLatency metrics.Timer   `metric:"latency" tags:"result=err"`
	OKLatency  metrics.Timer   `metric:"latency" tags:"result=ok"`
}

func (c *callMetrics) emit(err error, latency time.Duration, responses int) {
	if err != nil {
		c.Errors.Inc(1)
		c.ErrLatency.Record(latency)
		return
	}
	c.Successes.Inc(1)
	c.OKLatency.Record(latency)
	c.Responses.Record(time.Duration(responses))
}

func build(namespace string, factory metrics.Factory) *callMetrics {
	m := &callMetrics{}
	metrics.Init(m, factory.Namespace(namespace, nil), nil)
	return m
}

// ReadMetricsDecorator wraps a spanstore.Reader, recording one callMetrics
// per operation the way jaeger's ReadMetricsDecorator does.
type ReadMetricsDecorator struct {
	reader spanstore.Reader

	getTrace        *callMetrics
	getRawTrace     *callMetrics
	getTraces       *callMetrics
	getServiceNames *callMetrics
	getSpanNames    *callMetrics
}

// NewReadMetricsDecorator returns a ReadMetricsDecorator around reader.
func NewReadMetricsDecorator(reader spanstore.Reader, factory metrics.Factory) *ReadMetricsDecorator {
	return &ReadMetricsDecorator{
		reader:          reader,
		getTrace:        build("get_trace", factory),
		getRawTrace:     build("get_raw_trace", factory),
		getTraces:       build("get_traces", factory),
		getServiceNames: build("get_service_names", factory),
		getSpanNames:    build("get_span_names", factory),
	}
}

func (d *ReadMetricsDecorator) GetTrace(ctx context.Context, traceID int64) ([]model.Span, error) {
	start := time.Now()
	trace, err := d.reader.GetTrace(ctx, traceID)
	d.getTrace.emit(err, time.Since(start), len(trace))
	return trace, err
}

func (d *ReadMetricsDecorator) GetRawTrace(ctx context.Context, traceID int64) ([]model.Span, error) {
	start := time.Now()
	trace, err := d.reader.GetRawTrace(ctx, traceID)
	d.getRawTrace.emit(err, time.Since(start), len(trace))
	return trace, err
}

func (d *ReadMetricsDecorator) GetTraces(ctx context.Context, req model.QueryRequest) ([][]model.Span, error) {
	start := time.Now()
	traces, err := d.reader.GetTraces(ctx, req)
	d.getTraces.emit(err, time.Since(start), len(traces))
	return traces, err
}

func (d *ReadMetricsDecorator) GetServiceNames(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := d.reader.GetServiceNames(ctx)
	d.getServiceNames.emit(err, time.Since(start), len(names))
	return names, err
}

func (d *ReadMetricsDecorator) GetSpanNames(ctx context.Context, service string) ([]string, error) {
	start := time.Now()
	names, err := d.reader.GetSpanNames(ctx, service)
	d.getSpanNames.emit(err, time.Since(start), len(names))
	return names, err
}

// WriteMetricsDecorator wraps a spanstore.Writer.
type WriteMetricsDecorator struct {
	writer spanstore.Writer
	accept *callMetrics
}

// NewWriteMetricsDecorator returns a WriteMetricsDecorator around writer.
func NewWriteMetricsDecorator(writer spanstore.Writer, factory metrics.Factory) *WriteMetricsDecorator {
	return &WriteMetricsDecorator{writer: writer, accept: build("accept", factory)}
}

func (d *WriteMetricsDecorator) Accept(ctx context.Context, spans []model.Span) error {
	start := time.Now()
	err := d.writer.Accept(ctx, spans)
	d.accept.emit(err, time.Since(start), len(spans))
	return err
}
