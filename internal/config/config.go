package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv    string
	APIKey    string
	RosterDir string
	OutputDir string
	DBPath    string
	DBDriver  string
	RedisAddr string
	HTTPAddr  string

	RequestDelay time.Duration
	PayloadTTL   time.Duration
	HTTPCacheTTL time.Duration
	SiteLimit    int
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		APIKey:       os.Getenv("GOOGLE_API_KEY"),
		RosterDir:    getEnv("ROSTER_DIR", "./data/roster"),
		OutputDir:    getEnv("OUTPUT_DIR", "./data/audits"),
		DBPath:       getEnv("DB_PATH", "./data/audits.db"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		RequestDelay: getEnvDuration("REQUEST_DELAY", 1500*time.Millisecond),
		PayloadTTL:   getEnvDuration("PAYLOAD_CACHE_TTL", 12*time.Hour),
		HTTPCacheTTL: getEnvDuration("HTTP_CACHE_TTL", 5*time.Minute),
		SiteLimit:    getEnvInt("SITE_LIMIT", 0),
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
