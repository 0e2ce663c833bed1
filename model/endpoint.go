// Copyright (c) 2017 Uber Technologies, Inc.
// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "strings"

// Endpoint identifies the network host that recorded an annotation or binary
// annotation. ServiceName is always lowercased, mirroring the write/query-time
// lowercasing described in spec.md §3.
type Endpoint struct {
	ServiceName string `json:"serviceName"`
	IPv4        int32  `json:"ipv4"`
	Port        *int16 `json:"port,omitempty"`
}

// NewEndpoint returns an Endpoint with a lowercased service name.
func NewEndpoint(serviceName string, ipv4 int32, port *int16) Endpoint {
	return Endpoint{
		ServiceName: strings.ToLower(serviceName),
		IPv4:        ipv4,
		Port:        port,
	}
}

// Equal reports whether two endpoints carry the same identity. A nil endpoint
// compares equal only to another nil endpoint.
func (e *Endpoint) Equal(o *Endpoint) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.ServiceName != o.ServiceName || e.IPv4 != o.IPv4 {
		return false
	}
	if (e.Port == nil) != (o.Port == nil) {
		return false
	}
	return e.Port == nil || *e.Port == *o.Port
}
