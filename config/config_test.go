package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   Config
	}{
		{
			name:   "empty development",
			config: Config{},
			want: Config{
				Name:        "carapace",
				Environment: "development",
				Logging:     LoggingConfig{Level: "info", Format: "console"},
				Debug:       DebugConfig{Addr: "127.0.0.1:6060"},
			},
		},
		{
			name:   "production uses json",
			config: Config{Environment: "production"},
			want: Config{
				Name:        "carapace",
				Environment: "production",
				Logging:     LoggingConfig{Level: "info", Format: "json"},
				Debug:       DebugConfig{Addr: "127.0.0.1:6060"},
			},
		},
		{
			name: "explicit values kept",
			config: Config{
				Name:        "shell",
				Environment: "staging",
				Logging:     LoggingConfig{Level: "debug", Format: "console"},
				Debug:       DebugConfig{Enabled: true, Addr: ":9000"},
			},
			want: Config{
				Name:        "shell",
				Environment: "staging",
				Logging:     LoggingConfig{Level: "debug", Format: "console"},
				Debug:       DebugConfig{Enabled: true, Addr: ":9000"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.ApplyDefaults()
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "environment must be one of"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format must be one of"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"debug without addr", func(c *Config) { c.Debug.Enabled = true; c.Debug.Addr = "" }, "debug.addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ProviderOptions(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{ValidateScopes: true, ValidateOnBuild: true}}
	assert.Len(t, cfg.ProviderOptions(zap.NewNop()), 3)

	cfg = Config{}
	assert.Len(t, cfg.ProviderOptions(zap.NewNop()), 1)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "missing.yml")))
	require.NoError(t, err)

	assert.Equal(t, "carapace", cfg.Name)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.Provider.ValidateScopes)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "carapace.yml", `
name: desktop
environment: production
provider:
  validate_scopes: true
  validate_on_build: true
logging:
  level: warn
debug:
  enabled: true
  addr: 127.0.0.1:7070
`)

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "desktop", cfg.Name)
	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.Provider.ValidateScopes)
	assert.True(t, cfg.Provider.ValidateOnBuild)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "127.0.0.1:7070", cfg.Debug.Addr)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "carapace.yml", `
provider:
  validate_scopes: false
logging:
  level: info
`)

	t.Setenv("CARAPACE_PROVIDER_VALIDATE_SCOPES", "true")
	t.Setenv("CARAPACE_LOGGING_LEVEL", "debug")

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.True(t, cfg.Provider.ValidateScopes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "CARAPACE_ENVIRONMENT=staging\n")

	// godotenv never overrides variables that are already set, and t.Setenv
	// restores the previous state once the test ends.
	t.Setenv("CARAPACE_ENVIRONMENT", "")
	require.NoError(t, os.Unsetenv("CARAPACE_ENVIRONMENT"))

	cfg, err := Load(WithEnvFile(path))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "carapace.yml", "debug:\n  addr: 127.0.0.1:7070\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("debug-addr", "", "")
	require.NoError(t, fs.Parse([]string{"--debug-addr", "0.0.0.0:8080"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("debug.addr", fs.Lookup("debug-addr")))

	cfg, err := Load(WithConfigFile(path), WithViper(v))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Debug.Addr)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "carapace.yml", "provider: [unclosed")

	_, err := Load(WithConfigFile(path))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "carapace.yml", "environment: qa\n")

	_, err := Load(WithConfigFile(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment must be one of")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
