// Copyright (c) 2018 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package config

// MemoryOptions stores the configuration for the in-memory backend. It has
// no tunables today: the in-memory store is unbounded and enforces no
// retention/TTL, per spec.md §1's Non-goals. The type exists so
// storeselect.New has a symmetrical Options argument for every backend.
type MemoryOptions struct{}
