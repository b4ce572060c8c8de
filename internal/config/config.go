package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	DiscordToken     string
	DatabaseDSN      string
	HTTPAddr         string
	CheckInterval    time.Duration
	InactivityWindow time.Duration
	InactiveRoleName string
	CommandPrefix    string
	LogLevel         string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// .env file is optional, continue with environment variables
	}

	config := &Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		InactiveRoleName: os.Getenv("INACTIVE_ROLE_NAME"),
		CommandPrefix:    os.Getenv("COMMAND_PREFIX"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		CheckInterval:    10 * time.Hour,
		InactivityWindow: 30 * 24 * time.Hour,
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	if config.DatabaseDSN == "" {
		return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
	}

	if config.HTTPAddr == "" {
		config.HTTPAddr = ":8080"
	}
	if config.InactiveRoleName == "" {
		config.InactiveRoleName = "Inactive"
	}
	if config.CommandPrefix == "" {
		config.CommandPrefix = "!"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if s := os.Getenv("CHECK_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, &ConfigError{Field: "CHECK_INTERVAL", Message: fmt.Sprintf("CHECK_INTERVAL must be a positive duration, got %q", s)}
		}
		config.CheckInterval = d
	}

	if s := os.Getenv("INACTIVITY_WINDOW"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, &ConfigError{Field: "INACTIVITY_WINDOW", Message: fmt.Sprintf("INACTIVITY_WINDOW must be a positive duration, got %q", s)}
		}
		config.InactivityWindow = d
	}

	return config, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
