// Package config loads and validates vaultfetch.yaml.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
	"github.com/systmms/vaultfetch/internal/logging"
	"github.com/systmms/vaultfetch/internal/resilience"
	"github.com/systmms/vaultfetch/internal/vault"
)

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition mirrors the vaultfetch.yaml structure.
type Definition struct {
	Version    int               `yaml:"version"`
	Server     ServerConfig      `yaml:"server"`
	Resilience ResilienceConfig  `yaml:"resilience,omitempty"`
	Envs       map[string]EnvSet `yaml:"envs,omitempty"`
}

// EnvSet maps environment variable names to vault:// reference URIs.
type EnvSet map[string]string

// ServerConfig describes the vault service endpoint and where the access
// token comes from. The token itself never appears in the file.
type ServerConfig struct {
	URL      string         `yaml:"url"`
	TokenEnv string         `yaml:"tokenEnv,omitempty"`
	Keyring  *KeyringConfig `yaml:"keyring,omitempty"`
}

// KeyringConfig addresses an OS keyring entry holding the access token.
type KeyringConfig struct {
	Service string `yaml:"service"`
	Account string `yaml:"account,omitempty"`
}

// ResilienceConfig tunes the fault-tolerance pipeline. Durations are
// integers in milliseconds, which stay readable in hand-edited YAML.
type ResilienceConfig struct {
	MaxRetries              *int  `yaml:"maxRetries,omitempty"`
	BaseDelayMs             int   `yaml:"baseDelayMs,omitempty"`
	Jitter                  *bool `yaml:"jitter,omitempty"`
	RequestTimeoutMs        int   `yaml:"requestTimeoutMs,omitempty"`
	CircuitFailureThreshold int   `yaml:"circuitFailureThreshold,omitempty"`
	CircuitBreakDurationMs  int   `yaml:"circuitBreakDurationMs,omitempty"`
}

// DefaultTokenEnv is consulted when the config names no token source.
const DefaultTokenEnv = "VAULTFETCH_TOKEN"

// Load reads, parses, and schema-validates the configuration file.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return vferrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a vaultfetch.yaml or point --config at one",
			}
		}
		return vferrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := validateSchema(data); err != nil {
		return err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return vferrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if def.Version != 0 {
		return vferrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your vaultfetch.yaml",
		}
	}

	c.Definition = &def
	return nil
}

// GetEnv returns the reference set for a named environment.
func (c *Config) GetEnv(name string) (EnvSet, error) {
	if c.Definition == nil {
		return nil, vferrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	env, ok := c.Definition.Envs[name]
	if !ok {
		var available []string
		for envName := range c.Definition.Envs {
			available = append(available, envName)
		}
		sort.Strings(available)

		suggestion := "Check your vaultfetch.yaml for available environments"
		if len(available) > 0 {
			suggestion = fmt.Sprintf("Available environments: %s", strings.Join(available, ", "))
		}

		return nil, vferrors.ConfigError{
			Field:      "environment",
			Value:      name,
			Message:    "environment not found",
			Suggestion: suggestion,
		}
	}
	return env, nil
}

// ClientConfig resolves the access token and builds the vault client
// configuration.
func (c *Config) ClientConfig() (vault.ClientConfig, error) {
	if c.Definition == nil {
		return vault.ClientConfig{}, vferrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	server := c.Definition.Server
	source := vault.TokenSource{Env: server.TokenEnv}
	if source.Env == "" {
		source.Env = DefaultTokenEnv
	}
	if server.Keyring != nil {
		source.KeyringService = server.Keyring.Service
		source.KeyringAccount = server.Keyring.Account
	}

	token, err := source.Resolve()
	if err != nil {
		return vault.ClientConfig{}, err
	}

	return vault.ClientConfig{BaseURL: server.URL, Token: token}, nil
}

// ResilienceOptions maps the config onto pipeline options, applying the
// documented defaults for anything unset.
func (c *Config) ResilienceOptions() resilience.Options {
	opts := resilience.DefaultOptions()
	if c.Definition == nil {
		return opts
	}

	rc := c.Definition.Resilience
	if rc.MaxRetries != nil {
		opts.MaxRetries = *rc.MaxRetries
	}
	if rc.BaseDelayMs > 0 {
		opts.BaseDelay = time.Duration(rc.BaseDelayMs) * time.Millisecond
	}
	if rc.Jitter != nil {
		opts.Jitter = *rc.Jitter
	}
	if rc.RequestTimeoutMs > 0 {
		opts.RequestTimeout = time.Duration(rc.RequestTimeoutMs) * time.Millisecond
	}
	if rc.CircuitFailureThreshold > 0 {
		opts.FailureThreshold = rc.CircuitFailureThreshold
	}
	if rc.CircuitBreakDurationMs > 0 {
		opts.BreakDuration = time.Duration(rc.CircuitBreakDurationMs) * time.Millisecond
	}
	return opts
}
