// Package config provides configuration loading for pdf2jpeg.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf2jpeg/internal/naming"
)

// Config holds all configuration for pdf2jpeg.
type Config struct {
	Render        RenderConfig        `yaml:"render"`
	Decode        DecodeConfig        `yaml:"decode"`
	Output        OutputConfig        `yaml:"output"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	DPI int `yaml:"dpi"`
}

// DecodeConfig holds barcode recognition settings.
type DecodeConfig struct {
	TryHarder bool `yaml:"try_harder"`
}

// OutputConfig holds naming and persistence settings.
type OutputConfig struct {
	// Destination is a directory path or an s3://bucket/prefix URL.
	Destination  string        `yaml:"destination"`
	Quality      int           `yaml:"quality"`
	Collision    naming.Policy `yaml:"collision"`
	Manifest     bool          `yaml:"manifest"`
	KeepOriginal bool          `yaml:"keep_original"`
	S3           S3Config      `yaml:"s3"`
}

// S3Config holds object storage credentials for s3:// destinations.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Insecure  bool   `yaml:"insecure"`
}

// PipelineConfig holds save pipeline settings.
type PipelineConfig struct {
	// Workers > 1 enhances and decodes pages in parallel; writes stay in order.
	Workers    int `yaml:"workers"`
	EventQueue int `yaml:"event_queue"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			DPI: 150,
		},
		Decode: DecodeConfig{
			TryHarder: true,
		},
		Output: OutputConfig{
			Destination: ".",
			Quality:     75,
			Collision:   naming.Overwrite,
		},
		Pipeline: PipelineConfig{
			Workers:    1,
			EventQueue: 100,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Render.DPI < 1 || c.Render.DPI > 1200 {
		return fmt.Errorf("dpi must be between 1 and 1200, got %d", c.Render.DPI)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Output.Quality)
	}

	if _, err := naming.ParsePolicy(string(c.Output.Collision)); err != nil {
		return err
	}

	if strings.TrimSpace(c.Output.Destination) == "" {
		return fmt.Errorf("output destination is required")
	}

	if c.IsS3Destination() && c.Output.S3.Endpoint == "" {
		return fmt.Errorf("s3 endpoint is required for destination %s", c.Output.Destination)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	if c.Pipeline.EventQueue < 1 {
		return fmt.Errorf("event_queue must be at least 1, got %d", c.Pipeline.EventQueue)
	}

	if f := c.Observability.LogFormat; f != "console" && f != "json" {
		return fmt.Errorf("invalid log format: %s", f)
	}

	return nil
}

// IsS3Destination reports whether output goes to object storage.
func (c *Config) IsS3Destination() bool {
	return strings.HasPrefix(c.Output.Destination, "s3://")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDF2JPEG_DPI"); v != "" {
		if dpi, err := strconv.Atoi(v); err == nil {
			cfg.Render.DPI = dpi
		}
	}

	if v := os.Getenv("PDF2JPEG_OUTPUT"); v != "" {
		cfg.Output.Destination = v
	}

	if v := os.Getenv("PDF2JPEG_QUALITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Output.Quality = q
		}
	}

	if v := os.Getenv("PDF2JPEG_WORKERS"); v != "" {
		if w, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = w
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Output.S3.Endpoint = v
	}

	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Output.S3.AccessKey = v
	}

	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Output.S3.SecretKey = v
	}

	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Output.S3.Region = v
	}

	if v := os.Getenv("S3_INSECURE"); v == "true" {
		cfg.Output.S3.Insecure = true
	}
}
