// Package config provides configuration management for the object store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the object store configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  int      `yaml:"read_timeout"`  // seconds
	WriteTimeout int      `yaml:"write_timeout"` // seconds
	CORSOrigins  []string `yaml:"cors_origins"`
	DocsEnabled  bool     `yaml:"docs_enabled"`
}

// StorageConfig represents the embedded database configuration.
type StorageConfig struct {
	// Path is the database file path, or ":memory:" for an in-memory store.
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
}

// AuthConfig represents the flat client authentication map. It is loaded
// once at startup and never mutated.
type AuthConfig struct {
	// Clients maps client_id to its token.
	Clients map[string]string `yaml:"clients"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
	// File, when set, sends log output to a size-rotated file instead of
	// stdout.
	File string `yaml:"file"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			CORSOrigins:  []string{"*"},
			DocsEnabled:  true,
		},
		Storage: StorageConfig{
			Path:          "objectstore.db",
			BusyTimeoutMS: 30000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables override file configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if provided
	if path != "" {
		// #nosec G304 -- path is from command-line argument, user-controlled input is expected
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config file
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("OBJECTSTORE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("OBJECTSTORE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("OBJECTSTORE_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("OBJECTSTORE_AUTH"); v != "" {
		clients := map[string]string{}
		if err := json.Unmarshal([]byte(v), &clients); err != nil {
			return fmt.Errorf("failed to parse OBJECTSTORE_AUTH: %w", err)
		}
		c.Auth.Clients = clients
	}
	if v := os.Getenv("OBJECTSTORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OBJECTSTORE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("OBJECTSTORE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("OBJECTSTORE_DOCS_ENABLED"); v != "" {
		c.Server.DocsEnabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("OBJECTSTORE_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Storage.BusyTimeoutMS < 0 {
		return fmt.Errorf("invalid busy timeout: %d", c.Storage.BusyTimeoutMS)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	for id, token := range c.Auth.Clients {
		if id == "" {
			return fmt.Errorf("auth client with empty client_id")
		}
		if token == "" {
			return fmt.Errorf("auth client %q has an empty token", id)
		}
	}

	return nil
}

// Address returns the server address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
