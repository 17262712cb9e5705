package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrSchemaViolation indicates the config file shape does not match the
// published schema.
var ErrSchemaViolation = errors.New("config schema violation")

// configSchema is the JSON schema for the merged configuration map. It guards
// against typos like a string batch_size or an unknown top-level section
// before unmarshalling hides them behind zero values.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "convert": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "format": {"type": "string"},
        "batch_size": {"type": "integer"},
        "mem_limit": {"type": "string"},
        "workers": {"type": "integer"},
        "max_record_size": {"type": "string"},
        "namespaces": {"type": "array", "items": {"type": "integer"}},
        "skip_redirects": {"type": "boolean"},
        "front_matter": {"type": "boolean"}
      }
    },
    "checkpoint": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "clear_prev": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "silent": {"type": "boolean"}
      }
    }
  }
}`

// validateSchemaFile parses the config file and checks it against
// configSchema.
func validateSchemaFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config for schema check: %w", err)
	}

	var settings map[string]any

	err = yaml.Unmarshal(raw, &settings)
	if err != nil {
		return fmt.Errorf("parse config for schema check: %w", err)
	}

	if settings == nil {
		return nil
	}

	return validateSchema(settings)
}

// validateSchema checks a settings map against configSchema.
func validateSchema(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	settingsLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, settingsLoader)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var b strings.Builder

	for i, verr := range result.Errors() {
		if i > 0 {
			b.WriteString("; ")
		}

		fmt.Fprintf(&b, "%s: %s", verr.Field(), verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, b.String())
}
