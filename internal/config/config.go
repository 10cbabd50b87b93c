// Package config defines the labelwipe configuration model and its loading
// from files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"strings"
)

// Config represents the complete configuration for the labelwipe service.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Google Cloud settings (Vision OCR + object storage)
	Google GoogleConfig `mapstructure:"google" yaml:"google" json:"google"`

	// Generative analysis settings (field detection + reconciliation)
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai" json:"openai"`

	// Inpainting backend settings
	Inpaint InpaintConfig `mapstructure:"inpaint" yaml:"inpaint" json:"inpaint"`

	// Workflow settings
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// GoogleConfig contains Google Cloud settings.
type GoogleConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
}

// OpenAIConfig contains the vision-analysis model settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Model  string `mapstructure:"model" yaml:"model" json:"model"`

	// MinIntervalMs is the minimum spacing between outbound analysis
	// calls, shared process-wide.
	MinIntervalMs int `mapstructure:"min_interval_ms" yaml:"min_interval_ms" json:"min_interval_ms"`

	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`

	// ProximityRadius is the label-to-value distance threshold, in
	// pixels, used by the local fallback detector.
	ProximityRadius float64 `mapstructure:"proximity_radius" yaml:"proximity_radius" json:"proximity_radius"`
}

// InpaintConfig contains the inpainting backend settings.
type InpaintConfig struct {
	Endpoint     string  `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey       string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	SampleCount  int     `mapstructure:"sample_count" yaml:"sample_count" json:"sample_count"`
	MaskDilation float64 `mapstructure:"mask_dilation" yaml:"mask_dilation" json:"mask_dilation"`
	TimeoutSec   int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	Prompt       string  `mapstructure:"prompt" yaml:"prompt" json:"prompt"`
}

// PipelineConfig contains workflow settings.
type PipelineConfig struct {
	// Padding is the default pixel padding around masked boxes.
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`

	TempDir       string `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
	KeepTempFiles bool   `mapstructure:"keep_temp_files" yaml:"keep_temp_files" json:"keep_temp_files"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains inbound rate limiting settings. All zeros
// disables rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o",
			MinIntervalMs:   1000,
			MaxRetries:      3,
			ProximityRadius: 100,
		},
		Inpaint: InpaintConfig{
			SampleCount:  4,
			MaskDilation: 0.01,
			TimeoutSec:   120,
		},
		Pipeline: PipelineConfig{
			Padding: 5,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      300,
			ShutdownTimeout: 10,
		},
	}
}

// validLogLevels lists accepted log level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	levelOK := false
	for _, l := range validLogLevels {
		if strings.EqualFold(c.LogLevel, l) {
			levelOK = true
			break
		}
	}
	if !levelOK {
		errs = append(errs, fmt.Sprintf("log_level must be one of %v, got %q", validLogLevels, c.LogLevel))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, "server.max_upload_mb must be positive")
	}
	if c.OpenAI.MaxRetries < 1 {
		errs = append(errs, "openai.max_retries must be at least 1")
	}
	if c.OpenAI.ProximityRadius <= 0 {
		errs = append(errs, "openai.proximity_radius must be positive")
	}
	if c.Inpaint.SampleCount < 1 {
		errs = append(errs, "inpaint.sample_count must be at least 1")
	}
	if c.Inpaint.MaskDilation < 0 || c.Inpaint.MaskDilation > 1 {
		errs = append(errs, "inpaint.mask_dilation must be between 0 and 1")
	}
	if c.Pipeline.Padding < 0 {
		errs = append(errs, "pipeline.padding must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
