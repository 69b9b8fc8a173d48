// Package config provides configuration loading and management for tada.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverNATS   = "nats"
)

// Config represents the complete tada configuration
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Remote RemoteConfig `yaml:"remote"`
	Log    LogConfig    `yaml:"log"`
	UI     UIConfig     `yaml:"ui"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	// Driver is one of memory, json, sqlite, nats
	Driver string `yaml:"driver"`
	// Path is the json file or sqlite database (default: todos.json / tada.db in the working directory)
	Path string `yaml:"path"`
	// NATSURL is the NATS server for the nats driver
	NATSURL string `yaml:"nats_url"`
	// Bucket is the JetStream KV bucket for the nats driver
	Bucket string `yaml:"bucket"`
	// Seed fills an empty store with sample items on startup
	Seed bool `yaml:"seed"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Token, when set, is required as a bearer token on /api/ requests
	Token           string        `yaml:"token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RemoteConfig points the CLI at a running server instead of a local store
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// UIConfig configures terminal output
type UIConfig struct {
	Theme string `yaml:"theme"`
	// Color is auto, always or never
	Color string `yaml:"color"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverJSON,
			Bucket: "TADA_ITEMS",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		UI: UIConfig{
			Theme: "classic",
			Color: "auto",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverJSON, DriverSQLite:
	case DriverNATS:
		if c.Store.NATSURL == "" {
			return fmt.Errorf("store.nats_url is required for the nats driver")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, json, sqlite, nats (got %q)", c.Store.Driver)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	switch c.UI.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("ui.color must be auto, always or never (got %q)", c.UI.Color)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Store
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.NATSURL != "" {
		c.Store.NATSURL = other.Store.NATSURL
	}
	if other.Store.Bucket != "" {
		c.Store.Bucket = other.Store.Bucket
	}
	if other.Store.Seed {
		c.Store.Seed = true
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.Token != "" {
		c.Server.Token = other.Server.Token
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	// Remote
	if other.Remote.URL != "" {
		c.Remote.URL = other.Remote.URL
	}
	if other.Remote.Timeout != 0 {
		c.Remote.Timeout = other.Remote.Timeout
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	// UI
	if other.UI.Theme != "" {
		c.UI.Theme = other.UI.Theme
	}
	if other.UI.Color != "" {
		c.UI.Color = other.UI.Color
	}
}
