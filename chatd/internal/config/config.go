// Package config provides configuration for the chat service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

// Config holds the chat service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Auth settings
	TokenTTL      time.Duration
	SeedDemoUsers bool // Seed the sample directory users, password "password"

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Per-connection inbound event rate
	RateLimitPerSec float64
	RateLimitBurst  int

	// Cross-instance room fanout, disabled when empty
	RedisURL string
}

// Load loads configuration from environment variables, seeded from a .env file when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		glog.Warningf("config: failed to read .env: %v", err)
	}

	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", "file:chatd.db?cache=shared&mode=rwc"),
		TokenTTL:        time.Duration(getEnvInt("TOKEN_TTL_HOURS", 168)) * time.Hour,
		SeedDemoUsers:   getEnvBool("SEED_DEMO_USERS", true),
		PingInterval:    time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:    time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:     time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize:  int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		RateLimitPerSec: float64(getEnvInt("RATE_LIMIT_PER_SEC", 20)),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 40),
		RedisURL:        getEnv("REDIS_URL", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
