package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database. Empty selects the in-memory store (useful for local runs).
	DatabaseURL string

	// Web server
	WebBind string

	// Chart rendering
	ChartDir     string
	ChartBaseURL string

	// Chart-link tokens
	JWTSecret string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WebBind:      getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		ChartDir:     getEnvDefault("CHART_DIR", "static"),
		ChartBaseURL: getEnvDefault("CHART_BASE_URL", "http://localhost:3000"),
		JWTSecret:    getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		LogLevel:     getEnvDefault("LOG_LEVEL", "info"),
	}

	if parsed, err := url.Parse(cfg.ChartBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("CHART_BASE_URL must be an absolute URL, got %q", cfg.ChartBaseURL)
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
