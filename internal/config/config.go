// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for databases (always absolute)
	Port           int
	DevMode        bool
	LogLevel       string
	JobRetention   time.Duration // How long terminal jobs are kept before the sweep removes them
	JobWorkers     int           // Max concurrent calculation jobs
	IngestEnabled  bool          // Enable the scheduled market-data ingestion pipeline
	IngestSchedule string        // Cron expression for the ingestion pipeline
	QuoteURL       string        // Base URL of the daily quote service
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory:
	// 1. ENGINE_DATA_DIR environment variable
	// 2. Fallback to ./data
	// Always resolved to an absolute path, created if missing.
	dataDir := getEnv("ENGINE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("ENGINE_PORT", 8001),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JobRetention:   getEnvAsDuration("JOB_RETENTION", time.Hour),
		JobWorkers:     getEnvAsInt("JOB_WORKERS", 4),
		IngestEnabled:  getEnvAsBool("INGEST_ENABLED", false),
		IngestSchedule: getEnv("INGEST_SCHEDULE", "0 30 22 * * MON-FRI"),
		QuoteURL:       getEnv("QUOTE_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.JobWorkers < 1 {
		return fmt.Errorf("invalid job worker count: %d", c.JobWorkers)
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("invalid job retention: %s", c.JobRetention)
	}
	if c.IngestEnabled && c.QuoteURL == "" {
		return fmt.Errorf("ingestion enabled but QUOTE_URL is not set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
