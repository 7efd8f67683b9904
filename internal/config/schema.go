package config

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

// configSchema validates the shape of vaultfetch.yaml before the typed
// unmarshal, so typos in field names fail loudly instead of silently
// falling back to defaults.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "server"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer"},
    "server": {
      "type": "object",
      "required": ["url"],
      "additionalProperties": false,
      "properties": {
        "url": {"type": "string", "minLength": 1},
        "tokenEnv": {"type": "string"},
        "keyring": {
          "type": "object",
          "required": ["service"],
          "additionalProperties": false,
          "properties": {
            "service": {"type": "string", "minLength": 1},
            "account": {"type": "string"}
          }
        }
      }
    },
    "resilience": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "maxRetries": {"type": "integer", "minimum": 0},
        "baseDelayMs": {"type": "integer", "minimum": 1},
        "jitter": {"type": "boolean"},
        "requestTimeoutMs": {"type": "integer", "minimum": 1},
        "circuitFailureThreshold": {"type": "integer", "minimum": 1},
        "circuitBreakDurationMs": {"type": "integer", "minimum": 1}
      }
    },
    "envs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "string", "minLength": 1}
      }
    }
  }
}`

// validateSchema checks the raw YAML document against the embedded JSON
// schema. YAML is converted to JSON first since the schema library only
// speaks JSON.
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return vferrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return vferrors.ConfigError{
			Message:    "configuration could not be converted for validation",
			Suggestion: "Check for non-string keys in the YAML document",
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return vferrors.UserError{
			Message: "Failed to validate configuration",
			Details: err.Error(),
			Err:     err,
		}
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return vferrors.ConfigError{
			Message:    "configuration does not match the expected schema",
			Suggestion: strings.Join(problems, "; "),
		}
	}
	return nil
}
