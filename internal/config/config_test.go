package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 1000, cfg.OpenAI.MinIntervalMs)
	assert.Equal(t, 4, cfg.Inpaint.SampleCount)
	assert.InDelta(t, 0.01, cfg.Inpaint.MaskDilation, 1e-9)
	assert.Equal(t, 5, cfg.Pipeline.Padding)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "chatty" },
			wantErr: "log_level",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.OpenAI.MaxRetries = 0 },
			wantErr: "openai.max_retries",
		},
		{
			name:    "dilation out of range",
			mutate:  func(c *Config) { c.Inpaint.MaskDilation = 1.5 },
			wantErr: "inpaint.mask_dilation",
		},
		{
			name:    "negative padding",
			mutate:  func(c *Config) { c.Pipeline.Padding = -1 },
			wantErr: "pipeline.padding",
		},
		{
			name:    "zero upload limit",
			mutate:  func(c *Config) { c.Server.MaxUploadMB = 0 },
			wantErr: "server.max_upload_mb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "server.port")
}

func newIsolatedLoader() *Loader {
	return &Loader{v: viper.New()}
}

func TestLoader_LoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labelwipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
google:
  bucket: my-labels
server:
  port: 9090
`), 0o600))

	cfg, err := newIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)

	// Overrides apply, untouched keys keep their defaults.
	assert.Equal(t, "my-labels", cfg.Google.Bucket)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 4, cfg.Inpaint.SampleCount)
}

func TestLoader_LoadWithFile_Missing(t *testing.T) {
	_, err := newIsolatedLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoader_LoadWithFile_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labelwipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0o600))

	_, err := newIsolatedLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("LABELWIPE_GOOGLE_BUCKET", "env-bucket")
	t.Setenv("LABELWIPE_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "labelwipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o600))

	cfg, err := newIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-bucket", cfg.Google.Bucket)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, *DefaultConfig(), cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/labelwipe")
}
