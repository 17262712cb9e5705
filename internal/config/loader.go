package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".wikimill"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for wikimill settings.
const envPrefix = "WIKIMILL"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	// Schema-check the file alone. Env overrides arrive as strings and would
	// trip the typed schema.
	if used := viperCfg.ConfigFileUsed(); used != "" {
		schemaErr := validateSchemaFile(used)
		if schemaErr != nil {
			return nil, schemaErr
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("convert.format", DefaultFormat)
	viperCfg.SetDefault("convert.batch_size", DefaultBatchSize)
	viperCfg.SetDefault("convert.mem_limit", DefaultMemLimit)
	viperCfg.SetDefault("convert.workers", DefaultWorkers)
	viperCfg.SetDefault("convert.max_record_size", DefaultMaxRecordSize)
	viperCfg.SetDefault("convert.namespaces", []int{0})
	viperCfg.SetDefault("convert.skip_redirects", DefaultSkipRedirects)
	viperCfg.SetDefault("convert.front_matter", DefaultFrontMatter)

	viperCfg.SetDefault("checkpoint.dir", "")
	viperCfg.SetDefault("checkpoint.clear_prev", false)

	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.silent", false)
}
