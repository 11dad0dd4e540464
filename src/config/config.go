package config

import (
	"fmt"
	"os"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be greater than 0")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Feed configuration
	if c.Feed.HistoryPoints <= 0 {
		return fmt.Errorf("history points must be greater than 0")
	}
	if len(c.Feed.Sources) == 0 {
		return fmt.Errorf("at least one tick source must be configured")
	}
	for i, src := range c.Feed.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d must have a name", i)
		}
		if src.Type != "kis" && src.Type != "replay" {
			return fmt.Errorf("source '%s' has unsupported type '%s'", src.Name, src.Type)
		}
		if len(src.Instruments) == 0 {
			return fmt.Errorf("source '%s' must have at least one instrument", src.Name)
		}
		if src.Type == "kis" && src.Endpoint == "" {
			return fmt.Errorf("source '%s' must have an endpoint", src.Name)
		}
	}

	// Validate Coalescer configuration
	if c.Coalescer.FlushIntervalMs < 0 {
		return fmt.Errorf("flush interval cannot be negative")
	}
	if c.Coalescer.MailboxSize < 0 {
		return fmt.Errorf("mailbox size cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
