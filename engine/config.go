// Package engine exposes the operations consumed by the HTTP layer,
// composing storage.CollectionStore, storage.IndexStore, query.Plan, and
// aggregate.Run under a per-collection locking discipline.
package engine

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/lattice-db/lattice/core"
)

// Config is the engine's ambient configuration, loaded with spf13/viper
// layering defaults, an optional config file, and DOCDB_-prefixed
// environment variables.
type Config struct {
	DataDir               string `mapstructure:"data_dir"`
	LogLevel              string `mapstructure:"log_level"`
	RebuildIndexesOnStart bool   `mapstructure:"rebuild_indexes_on_start"`
}

// DefaultConfig is used when no config file or environment override is
// present.
func DefaultConfig() Config {
	return Config{
		DataDir:               "./data",
		LogLevel:              "info",
		RebuildIndexesOnStart: false,
	}
}

// LoadConfig reads engine configuration from (in increasing priority)
// built-in defaults, an optional docdb.yaml/docdb.json in configDirs, and
// DOCDB_-prefixed environment variables.
func LoadConfig(configDirs ...string) (Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("rebuild_indexes_on_start", def.RebuildIndexesOnStart)

	v.SetConfigName("docdb")
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("DOCDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, core.NewInternal(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, core.NewInternal(err, "failed to decode config")
	}
	return cfg, nil
}
