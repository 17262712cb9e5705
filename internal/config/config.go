// Package config loads and validates wikimill configuration from file,
// environment, and defaults.
package config

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration struct for wikimill.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Convert    ConvertConfig    `mapstructure:"convert"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ConvertConfig holds conversion pipeline knobs.
type ConvertConfig struct {
	Format        string `mapstructure:"format"`
	BatchSize     int    `mapstructure:"batch_size"`
	MemLimit      string `mapstructure:"mem_limit"`
	Workers       int    `mapstructure:"workers"`
	MaxRecordSize string `mapstructure:"max_record_size"`
	Namespaces    []int  `mapstructure:"namespaces"`
	SkipRedirects bool   `mapstructure:"skip_redirects"`
	FrontMatter   bool   `mapstructure:"front_matter"`
}

// CheckpointConfig holds checkpoint settings.
type CheckpointConfig struct {
	Dir       string `mapstructure:"dir"`
	ClearPrev bool   `mapstructure:"clear_prev"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Silent bool   `mapstructure:"silent"`
}

// Defaults applied by the loader when neither file nor environment sets a key.
const (
	DefaultFormat        = "markdown"
	DefaultBatchSize     = 1000
	DefaultMemLimit      = "256MB"
	DefaultWorkers       = 0 // 0 means runtime.NumCPU
	DefaultMaxRecordSize = "64MB"
	DefaultSkipRedirects = true
	DefaultFrontMatter   = true
	DefaultMetricsAddr   = "" // empty disables the endpoint
	DefaultLogLevel      = "info"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidBatchSize indicates the batch size is not positive.
	ErrInvalidBatchSize = errors.New("convert.batch_size must be positive")
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("convert.workers must be non-negative")
	// ErrInvalidSizeFormat indicates a size string humanize cannot parse.
	ErrInvalidSizeFormat = errors.New("invalid size format")
	// ErrInvalidNamespace indicates a negative namespace id.
	ErrInvalidNamespace = errors.New("convert.namespaces entries must be non-negative")
	// ErrInvalidLogLevel indicates an unknown logging level.
	ErrInvalidLogLevel = errors.New("logging.level must be one of debug, info, warn, error")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Convert.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Convert.Workers < 0 {
		return ErrInvalidWorkers
	}

	for _, ns := range c.Convert.Namespaces {
		if ns < 0 {
			return ErrInvalidNamespace
		}
	}

	_, err := c.MemLimitBytes()
	if err != nil {
		return err
	}

	_, err = c.MaxRecordSizeBytes()
	if err != nil {
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	return nil
}

// MemLimitBytes parses the batch memory ceiling. Size strings use humanize
// format (e.g. "256MB", "1GiB").
func (c *Config) MemLimitBytes() (int64, error) {
	return parseSize(c.Convert.MemLimit, "mem_limit")
}

// MaxRecordSizeBytes parses the per-record extraction ceiling.
func (c *Config) MaxRecordSizeBytes() (int64, error) {
	return parseSize(c.Convert.MaxRecordSize, "max_record_size")
}

func parseSize(value, field string) (int64, error) {
	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %s", ErrInvalidSizeFormat, field, value)
	}

	return int64(parsed), nil
}
