package config

import (
	"fmt"
)

// Config represents the main Tea service configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Anthropic model settings
	Anthropic AnthropicConfig `json:"anthropic" mapstructure:"anthropic"`

	// Serper web search settings
	Serper SerperConfig `json:"serper" mapstructure:"serper"`

	// Quota settings
	Quota QuotaConfig `json:"quota" mapstructure:"quota"`

	// Database
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// AnthropicConfig holds generative model configuration
type AnthropicConfig struct {
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	Model         string `json:"model" mapstructure:"model"`
	MaxTokens     int    `json:"max_tokens" mapstructure:"max_tokens"`
	MaxIterations int    `json:"max_iterations" mapstructure:"max_iterations"`
}

// SerperConfig holds web search provider configuration
type SerperConfig struct {
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	Endpoint   string `json:"endpoint" mapstructure:"endpoint"`
	NumResults int    `json:"num_results" mapstructure:"num_results"`
}

// QuotaConfig holds per-session usage quota configuration
type QuotaConfig struct {
	MaxQueries int `json:"max_queries" mapstructure:"max_queries"`
	// ResetSchedule is a cron expression; empty disables scheduled resets.
	ResetSchedule string `json:"reset_schedule" mapstructure:"reset_schedule"`
}

// DatabaseConfig holds sqlite configuration
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8686,
		},
		Anthropic: AnthropicConfig{
			Model:         "claude-sonnet-4-20250514",
			MaxTokens:     2048,
			MaxIterations: 10,
		},
		Serper: SerperConfig{
			Endpoint:   "https://google.serper.dev/search",
			NumResults: 5,
		},
		Quota: QuotaConfig{
			MaxQueries: 20,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// Validate checks the configuration for required fields and sane values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic api key is required")
	}
	if c.Anthropic.Model == "" {
		return fmt.Errorf("anthropic model is required")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Anthropic.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive")
	}
	if c.Quota.MaxQueries <= 0 {
		return fmt.Errorf("quota max queries must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}
