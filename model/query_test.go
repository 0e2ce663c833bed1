// Copyright (c) 2017 Uber Technologies, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryRequestNormalize(t *testing.T) {
	q := QueryRequest{ServiceName: "SVC"}.Normalize()
	assert.Equal(t, "svc", q.ServiceName)
	assert.Equal(t, 10, q.Limit)

	q = QueryRequest{ServiceName: "svc", Limit: 5}.Normalize()
	assert.Equal(t, 5, q.Limit)
}

func TestQueryRequestMicroConversions(t *testing.T) {
	q := QueryRequest{EndTs: 2, Lookback: 3}
	assert.Equal(t, int64(2000), q.MicroEndTs())
	assert.Equal(t, int64(3000), q.MicroLookback())
}
