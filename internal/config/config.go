package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Port        string
	DatabaseURL string

	// UseMockDB switches storage to the in-memory stub, for local
	// development without a database.
	UseMockDB bool

	// RefreshInterval is the dashboard fallback re-query interval.
	RefreshInterval time.Duration

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		UseMockDB:       os.Getenv("USE_MOCK_DB") == "true",
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RefreshInterval: 30 * time.Second,
	}

	if !cfg.UseMockDB {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
		}
	}

	if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("REFRESH_INTERVAL must be positive")
		}
		cfg.RefreshInterval = interval
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
