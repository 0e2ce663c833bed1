// Copyright (c) 2018 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"
	"time"

	"github.com/spf13/viper"
)

const (
	relationalDriver       = "relational.driver"
	relationalDSN          = "relational.dsn"
	relationalConnTimeout  = "relational.connect-timeout"
	relationalMaxOpenConns = "relational.max-open-conns"
)

// RelationalOptions stores the configuration for the relational backend
// (spec.md §4.6): a database/sql driver name and DSN, plus connection-pool
// tuning. Defaults target the sqlite3 driver jaeger's own plugin/storage/sqlite
// backend registers; the relational store's schema and statements are written
// in SQLite's SQL dialect.
type RelationalOptions struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
	MaxOpenConns   int
}

// AddRelationalFlags registers the relational backend's CLI flags.
func AddRelationalFlags(flagSet *flag.FlagSet) {
	flagSet.String(relationalDriver, "sqlite3", "database/sql driver name for the relational span store")
	flagSet.String(relationalDSN, "spans.db", "data source name passed to the relational driver")
	flagSet.Duration(relationalConnTimeout, 5*time.Second, "timeout for establishing the initial database connection")
	flagSet.Int(relationalMaxOpenConns, 10, "maximum number of open connections to the relational store")
}

// InitRelationalOptionsFromViper populates RelationalOptions from
// viper-bound flags.
func InitRelationalOptionsFromViper(v *viper.Viper) RelationalOptions {
	return RelationalOptions{
		Driver:         v.GetString(relationalDriver),
		DSN:            v.GetString(relationalDSN),
		ConnectTimeout: v.GetDuration(relationalConnTimeout),
		MaxOpenConns:   v.GetInt(relationalMaxOpenConns),
	}
}
