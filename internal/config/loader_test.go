package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".wikimill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, DefaultFormat, cfg.Convert.Format)
	assert.Equal(t, DefaultBatchSize, cfg.Convert.BatchSize)
	assert.Equal(t, []int{0}, cfg.Convert.Namespaces)
	assert.True(t, cfg.Convert.SkipRedirects)
	assert.True(t, cfg.Convert.FrontMatter)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)

	limit, err := cfg.MemLimitBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(256_000_000), limit)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, `
convert:
  format: html
  batch_size: 50
  mem_limit: 1GiB
  namespaces: [0, 14]
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "html", cfg.Convert.Format)
	assert.Equal(t, 50, cfg.Convert.BatchSize)
	assert.Equal(t, []int{0, 14}, cfg.Convert.Namespaces)
	assert.Equal(t, "debug", cfg.Logging.Level)

	limit, err := cfg.MemLimitBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), limit)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("WIKIMILL_CONVERT_BATCH_SIZE", "7")

	cfg, err := LoadConfig(writeConfigFile(t, "convert:\n  batch_size: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Convert.BatchSize)
}

func TestLoadConfig_SchemaRejectsUnknownSection(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "convertt:\n  batch_size: 50\n"))
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestLoadConfig_SchemaRejectsWrongType(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "convert:\n  batch_size: many\n"))
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.Convert.BatchSize)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Convert: ConvertConfig{
				Format:        "markdown",
				BatchSize:     10,
				MemLimit:      "64MB",
				MaxRecordSize: "64MB",
			},
			Logging: LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "zero batch size", mutate: func(c *Config) { c.Convert.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "negative workers", mutate: func(c *Config) { c.Convert.Workers = -1 }, wantErr: ErrInvalidWorkers},
		{name: "negative namespace", mutate: func(c *Config) { c.Convert.Namespaces = []int{-1} }, wantErr: ErrInvalidNamespace},
		{name: "bad mem limit", mutate: func(c *Config) { c.Convert.MemLimit = "lots" }, wantErr: ErrInvalidSizeFormat},
		{name: "bad record size", mutate: func(c *Config) { c.Convert.MaxRecordSize = "??" }, wantErr: ErrInvalidSizeFormat},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}
