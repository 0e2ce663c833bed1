// Copyright (c) 2019 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"

	"github.com/spf13/viper"
)

const spanStorageType = "span-storage-type"

// AddStorageTypeFlag registers the flag that picks which backend
// storeselect.New constructs, mirroring jaeger's span-storage-type flag in
// plugin/storage/factory_config.go.
func AddStorageTypeFlag(flagSet *flag.FlagSet) {
	flagSet.String(spanStorageType, "memory", `span storage backend: "memory" or "relational"`)
}

// StorageTypeFromViper reads the selected backend name.
func StorageTypeFromViper(v *viper.Viper) string {
	return v.GetString(spanStorageType)
}
