// Package config loads application configuration from environment variables
// and an optional YAML file, and resolves all filesystem paths relative to the
// executable directory.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Geocode  GeocodeConfig  `yaml:"geocode" envconfig:"GEOCODE"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// GeocodeConfig configures the external postcode resolution client.
// MinInterval is the enforced minimum delay between consecutive lookups;
// Workers above 1 enables the bounded concurrent resolver, which still shares
// a single rate limiter across all workers.
type GeocodeConfig struct {
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.postcodes.io" validate:"url"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
	MinInterval     time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL" default:"80ms" validate:"gte=0"`
	Workers         int           `yaml:"workers" envconfig:"WORKERS" default:"1" validate:"gte=1,lte=8"`
	CheckpointEvery int           `yaml:"checkpoint_every" envconfig:"CHECKPOINT_EVERY" default:"50" validate:"gte=1"`
}

// PipelineConfig configures dataset normalization and artifact handling.
type PipelineConfig struct {
	MinDate        string `yaml:"min_date" envconfig:"MIN_DATE" default:"2022-01-01"`
	ForceRebuild   bool   `yaml:"force_rebuild" envconfig:"FORCE_REBUILD" default:"false"`
	StalenessCheck bool   `yaml:"staleness_check" envconfig:"STALENESS_CHECK" default:"true"`
}

// MinDateTime parses the configured minimum donation date. A zero time means
// no cutoff.
func (p PipelineConfig) MinDateTime() (time.Time, error) {
	if p.MinDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", p.MinDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid pipeline min_date %q: %w", p.MinDate, err)
	}
	return t, nil
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Environment variables first
	if err := envconfig.Process("DONOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Overlay from config file if one exists
	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := c.Pipeline.MinDateTime(); err != nil {
		return err
	}

	// JSON is the only supported log format; correct rather than reject.
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "stdout" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    100,
			RateLimitBurst:  50,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Geocode: GeocodeConfig{
			BaseURL:         "https://api.postcodes.io",
			RequestTimeout:  10 * time.Second,
			MinInterval:     80 * time.Millisecond,
			Workers:         1,
			CheckpointEvery: 50,
		},
		Pipeline: PipelineConfig{
			MinDate:        "2022-01-01",
			StalenessCheck: true,
		},
	}
}
