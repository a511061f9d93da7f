package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay.
type Config struct {
	Port string
	Env  string

	// ReadLimitBytes caps the size of a single websocket frame.
	ReadLimitBytes int64

	// Rate limiting for the HTTP surface.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables.
// In development, it loads from a .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		ReadLimitBytes: getEnvInt64("READ_LIMIT_BYTES", 64*1024),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: int(getEnvInt64("RATE_LIMIT_BURST", 40)),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
