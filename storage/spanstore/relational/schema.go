// Copyright (c) 2015-2016 The OpenZipkin Authors
// SPDX-License-Identifier: Apache-2.0

package relational

// schemaSQL creates the two-table schema from spec.md §6. It is written in
// SQLite's dialect (BLOB columns, CREATE INDEX IF NOT EXISTS) and is run as
// one multi-statement Exec, mirroring how jaeger's plugin/storage/sqlite
// ships its schema as a literal SQL string (plugin/storage/sqlite/schema).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS spans (
	trace_id   INTEGER NOT NULL,
	id         INTEGER NOT NULL,
	parent_id  INTEGER,
	name       TEXT NOT NULL,
	start_ts   INTEGER,
	duration   INTEGER,
	debug      INTEGER,
	PRIMARY KEY (trace_id, id)
);

CREATE TABLE IF NOT EXISTS annotations (
	trace_id               INTEGER NOT NULL,
	span_id                INTEGER NOT NULL,
	a_key                  TEXT NOT NULL,
	a_value                BLOB,
	a_type                 INTEGER NOT NULL,
	a_timestamp            INTEGER NOT NULL,
	endpoint_service_name  TEXT,
	endpoint_ipv4          INTEGER,
	endpoint_port          INTEGER,
	PRIMARY KEY (trace_id, span_id, a_key, a_timestamp)
);

CREATE INDEX IF NOT EXISTS idx_spans_start_ts ON spans (start_ts);
CREATE INDEX IF NOT EXISTS idx_annotations_service ON annotations (endpoint_service_name);
`
