// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package model

// Core annotation values, per GLOSSARY: client-send, client-receive,
// server-receive, server-send.
const (
	ClientSend    = "cs"
	ClientRecv    = "cr"
	ServerRecv    = "sr"
	ServerSend    = "ss"
	ClientAddr    = "ca"
	ServerAddr    = "sa"
	ErrorAnnValue = "error"
)

// Annotation is a timestamped event on a span, e.g. "sr" or a custom log line.
type Annotation struct {
	Timestamp int64     `json:"timestamp"`
	Value     string    `json:"value"`
	Endpoint  *Endpoint `json:"endpoint,omitempty"`
}

// Equal reports whether two annotations are duplicates for merge purposes
// (spec.md §4.2): same timestamp, value and endpoint.
func (a Annotation) Equal(o Annotation) bool {
	return a.Timestamp == o.Timestamp && a.Value == o.Value && a.Endpoint.Equal(o.Endpoint)
}

// annotationLess orders annotations by (timestamp ASC, value ASC), the order
// required after MergeById (spec.md §4.2) and within a normalized span (§3).
func annotationLess(a, b Annotation) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Value < b.Value
}

// BinaryAnnotationType enumerates the typed values a BinaryAnnotation may carry.
type BinaryAnnotationType int

const (
	BoolType BinaryAnnotationType = iota
	StringType
	BytesType
	I16Type
	I32Type
	I64Type
	DoubleType
)

func (t BinaryAnnotationType) String() string {
	switch t {
	case BoolType:
		return "BOOL"
	case StringType:
		return "STRING"
	case BytesType:
		return "BYTES"
	case I16Type:
		return "I16"
	case I32Type:
		return "I32"
	case I64Type:
		return "I64"
	case DoubleType:
		return "DOUBLE"
	default:
		return "UNKNOWN"
	}
}

// BinaryAnnotation is a key/typed-value pair on a span, used for tags and
// endpoint identification ("ca", "sa").
type BinaryAnnotation struct {
	Key      string               `json:"key"`
	Value    []byte               `json:"value"`
	Type     BinaryAnnotationType `json:"type"`
	Endpoint *Endpoint            `json:"endpoint,omitempty"`
}

// Equal reports whether two binary annotations are duplicates for merge
// purposes (spec.md §4.2): same key, value, type and endpoint.
func (b BinaryAnnotation) Equal(o BinaryAnnotation) bool {
	return b.Key == o.Key && b.Type == o.Type && string(b.Value) == string(o.Value) && b.Endpoint.Equal(o.Endpoint)
}

// binaryAnnotationLess orders binary annotations by key ASC (spec.md §3, §4.2).
func binaryAnnotationLess(a, b BinaryAnnotation) bool {
	return a.Key < b.Key
}
