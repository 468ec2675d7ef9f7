package config

import (
	"fmt"
	"os"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogJSON   bool
	SweepCron string
	TenantIDs string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "./data/billing.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogJSON:   getEnv("LOG_FORMAT", "json") == "json",
		SweepCron: getEnv("SWEEP_CRON", "0 6 * * *"),
		TenantIDs: getEnv("SWEEP_TENANTS", ""),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
