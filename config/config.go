// Package config loads carapace settings from a YAML file, an optional .env
// file and CARAPACE_ prefixed environment variables, and builds the logger
// the provider reports through.
//
// # Usage
//
//	cfg, err := config.Load(config.WithConfigFile("carapace.yml"))
//	logger, err := config.NewLogger(cfg.Logging)
//	provider, err := services.Build(cfg.ProviderOptions(logger)...)
//
// Environment variables override file values with underscore-separated
// paths, e.g. CARAPACE_PROVIDER_VALIDATE_SCOPES=true.
package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xraph/carapace"
)

// ProviderConfig holds the provider build flags.
type ProviderConfig struct {
	ValidateScopes  bool `yaml:"validate_scopes" mapstructure:"validate_scopes"`
	ValidateOnBuild bool `yaml:"validate_on_build" mapstructure:"validate_on_build"`
}

// LoggingConfig selects the logger level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DebugConfig controls the diagnostics HTTP endpoint.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// Config is the full carapace configuration.
type Config struct {
	Name        string         `yaml:"name" mapstructure:"name"`
	Environment string         `yaml:"environment" mapstructure:"environment"`
	Provider    ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Logging     LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Debug       DebugConfig    `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "carapace"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
		if c.Environment == "development" {
			c.Logging.Format = "console"
		}
	}
	if c.Debug.Addr == "" {
		c.Debug.Addr = "127.0.0.1:6060"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, c.Environment) {
		return fmt.Errorf("environment must be one of [%s] (got: %s)", strings.Join(validEnvs, ", "), c.Environment)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of [%s] (got: %s)", strings.Join(validFormats, ", "), c.Logging.Format)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if c.Debug.Enabled && c.Debug.Addr == "" {
		return fmt.Errorf("debug.addr is required when debug.enabled is set")
	}

	return nil
}

// ProviderOptions converts the provider section into build options.
func (c *Config) ProviderOptions(logger *zap.Logger) []carapace.Option {
	opts := []carapace.Option{carapace.WithLogger(logger)}

	if c.Provider.ValidateScopes {
		opts = append(opts, carapace.WithValidateScopes())
	}
	if c.Provider.ValidateOnBuild {
		opts = append(opts, carapace.WithValidateOnBuild())
	}

	return opts
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
