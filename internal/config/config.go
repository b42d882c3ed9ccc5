// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Unset is the sentinel value for endpoint and api_key meaning "not configured".
// An unset endpoint is not a fatal condition: the agent keeps sampling and
// skips delivery until a real endpoint is provided.
const Unset = "NULL"

// DefaultPath is where the agent looks for its configuration when no
// -config flag is given.
const DefaultPath = "/etc/sylon/config.yaml"

// Config holds all agent configuration. It is loaded once at startup and
// treated as immutable for the process lifetime.
type Config struct {
	Endpoint        string  `yaml:"endpoint"`
	APIKey          string  `yaml:"api_key"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	MaxRetries      int     `yaml:"max_retries"`
	BackoffBase     float64 `yaml:"backoff_base"`
	Jitter          float64 `yaml:"jitter"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:        Unset,
		APIKey:          Unset,
		IntervalSeconds: 300,
		TimeoutSeconds:  10,
		MaxRetries:      5,
		BackoffBase:     2,
		Jitter:          0.3,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// File doesn't exist — use defaults + env overrides
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have the highest precedence.
func applyEnvOverrides(cfg *Config) {
	if endpoint := os.Getenv("SYLON_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if key := os.Getenv("SYLON_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if level := os.Getenv("SYLON_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Interval returns the sampling interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the numeric invariants the delivery and sampling loops
// depend on. An unset endpoint is deliberately NOT an error here — delivery
// is skipped per tick instead.
func (c *Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive (got %d)", c.IntervalSeconds)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive (got %d)", c.TimeoutSeconds)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive (got %d)", c.MaxRetries)
	}
	if c.BackoffBase <= 1 {
		return fmt.Errorf("backoff_base must be greater than 1 (got %g)", c.BackoffBase)
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0,1) (got %g)", c.Jitter)
	}
	return nil
}
