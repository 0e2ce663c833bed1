// Copyright (c) 2017 Uber Technologies, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAsEpochMicroseconds(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	assert.Equal(t, want.UnixNano()/1e3, TimeAsEpochMicroseconds(want))
}

func TestMillisToMicros(t *testing.T) {
	assert.Equal(t, int64(2_000_000), millisToMicros(2000))
}
