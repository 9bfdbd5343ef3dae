package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	once = sync.Once{}
	instance = nil
	t.Cleanup(viper.Reset)
}

func TestNewConfig(t *testing.T) {
	resetConfig(t)
	t.Setenv("CONFIG_PATH", t.TempDir())

	cfg, err := NewConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Test singleton behavior
	cfg2, err := NewConfig()
	assert.NoError(t, err)
	assert.Same(t, cfg, cfg2, "Expected NewConfig to return the same instance")
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetConfig(t)
	t.Setenv("CONFIG_PATH", t.TempDir())

	cfg := &Config{}
	require.NoError(t, cfg.LoadConfig())

	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 16384, cfg.MaxTokenLength)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.TrustDirectorySchemaCheck)
	assert.Empty(t, cfg.TrustDirectories)
	require.NotNil(t, cfg.Cache)
	assert.Equal(t, "memory", cfg.Cache.Type)
	require.NotNil(t, cfg.Server)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_File(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	content := `fetch_timeout: 2s
trust_directories:
  - /etc/shc-warden/vci.json
  - https://example.org/directory.json
  - s3://trust-bucket/vci.json
trust_directory_schema_check: false
max_token_length: 4096
log_level: debug
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", dir)

	cfg := &Config{}
	require.NoError(t, cfg.LoadConfig())

	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{
		"/etc/shc-warden/vci.json",
		"https://example.org/directory.json",
		"s3://trust-bucket/vci.json",
	}, cfg.TrustDirectories)
	assert.False(t, cfg.TrustDirectorySchemaCheck)
	assert.Equal(t, 4096, cfg.MaxTokenLength)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
}

func TestLoadConfig_Environment(t *testing.T) {
	resetConfig(t)
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("SHCW_FETCH_TIMEOUT", "750ms")
	t.Setenv("SHCW_TRUST_DIRECTORIES", "/tmp/a.json,/tmp/b.json")
	t.Setenv("SHCW_SERVER_PORT", "7070")

	cfg := &Config{}
	require.NoError(t, cfg.LoadConfig())

	assert.Equal(t, 750*time.Millisecond, cfg.FetchTimeout)
	assert.Equal(t, []string{"/tmp/a.json", "/tmp/b.json"}, cfg.TrustDirectories)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fetch_timeout: [\n"), 0o600))
	t.Setenv("CONFIG_PATH", dir)

	cfg := &Config{}
	err := cfg.LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "problem reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FetchTimeout:   5 * time.Second,
			MaxTokenLength: 16384,
			LogLevel:       "info",
		}
	}

	tests := []struct {
		name        string
		modify      func(c *Config)
		expectError string
	}{
		{name: "Valid", modify: func(c *Config) {}},
		{name: "Zero timeout", modify: func(c *Config) { c.FetchTimeout = 0 }, expectError: "fetch_timeout must be positive"},
		{name: "Negative token length", modify: func(c *Config) { c.MaxTokenLength = -1 }, expectError: "max_token_length must be positive"},
		{name: "Bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }, expectError: "invalid log level"},
		{name: "File path source", modify: func(c *Config) { c.TrustDirectories = []string{"./vci.json"} }},
		{name: "File URL source", modify: func(c *Config) { c.TrustDirectories = []string{"file:///etc/vci.json"} }},
		{name: "HTTPS source", modify: func(c *Config) { c.TrustDirectories = []string{"https://example.org/vci.json"} }},
		{name: "S3 source", modify: func(c *Config) { c.TrustDirectories = []string{"s3://bucket/path/vci.json"} }},
		{name: "S3 source without key", modify: func(c *Config) { c.TrustDirectories = []string{"s3://bucket"} }, expectError: "expected s3://bucket/key"},
		{name: "Unsupported scheme", modify: func(c *Config) { c.TrustDirectories = []string{"ftp://example.org/vci.json"} }, expectError: "unsupported scheme"},
		{name: "Empty source", modify: func(c *Config) { c.TrustDirectories = []string{" "} }, expectError: "cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg.Cache)
			assert.NotNil(t, cfg.Server)
		})
	}
}
