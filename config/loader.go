package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CARAPACE"

// LoaderConfig holds optional file overrides and a preconfigured viper instance.
type LoaderConfig struct {
	ConfigFile string       // Direct config file path (optional)
	EnvFile    string       // Direct .env file path (optional)
	Viper      *viper.Viper // Instance with flags already bound (optional)
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithViper loads into v, so flags bound to it take precedence over files and environment.
func WithViper(v *viper.Viper) LoaderOption {
	return func(lc *LoaderConfig) { lc.Viper = v }
}

// Load reads the configuration. Missing files are not an error; a file that
// exists but cannot be parsed is. Defaults are applied and the result is
// validated before it is returned.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := lc.Viper
	if v == nil {
		v = viper.New()
	}

	// .env first so its variables are visible to AutomaticEnv.
	if lc.EnvFile != "" && fileExists(lc.EnvFile) {
		if err := godotenv.Load(lc.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", lc.EnvFile, err)
		}
	}

	if lc.ConfigFile != "" && fileExists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", lc.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// registerKeys makes every key known to viper so AutomaticEnv applies to
// Unmarshal even when no file mentions the key.
func registerKeys(v *viper.Viper) {
	defaults := map[string]any{
		"name":                       "",
		"environment":                "",
		"provider.validate_scopes":   false,
		"provider.validate_on_build": false,
		"logging.level":              "",
		"logging.format":             "",
		"debug.enabled":              false,
		"debug.addr":                 "",
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
