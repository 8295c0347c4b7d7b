// Package config provides configuration for the chat client.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

// Config holds the chat client configuration.
type Config struct {
	// Backend settings
	APIURL string // Base URL of the backend, without the /api suffix
	WSURL  string // Realtime event service URL, derived from APIURL when unset

	// Local session storage
	SessionFile string

	// HTTP settings
	HTTPTimeout time.Duration

	// Presence settings
	TypingDebounce  time.Duration // Local silence before stop_typing is emitted
	StopTypingDelay time.Duration // Delay before a peer's stop_typing hides the indicator
	PeerTypingTTL   time.Duration // Upper bound on a typing indicator without any stop_typing

	// WebSocket settings
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Load loads configuration from environment variables, seeded from a .env file when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		glog.Warningf("config: failed to read .env: %v", err)
	}

	apiURL := strings.TrimSuffix(getEnv("CHAT_API_URL", "http://localhost:8080"), "/")
	return &Config{
		APIURL:          apiURL,
		WSURL:           getEnv("CHAT_WS_URL", deriveWSURL(apiURL)),
		SessionFile:     getEnv("CHAT_SESSION_FILE", defaultSessionFile()),
		HTTPTimeout:     time.Duration(getEnvInt("CHAT_HTTP_TIMEOUT_MS", 10000)) * time.Millisecond,
		TypingDebounce:  time.Duration(getEnvInt("CHAT_TYPING_DEBOUNCE_MS", 1500)) * time.Millisecond,
		StopTypingDelay: time.Duration(getEnvInt("CHAT_STOP_TYPING_DELAY_MS", 2000)) * time.Millisecond,
		PeerTypingTTL:   time.Duration(getEnvInt("CHAT_PEER_TYPING_TTL_MS", 10000)) * time.Millisecond,
		PingInterval:    time.Duration(getEnvInt("CHAT_WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:    time.Duration(getEnvInt("CHAT_WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
	}
}

// deriveWSURL maps http(s)://host/path to ws(s)://host/path/ws.
func deriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:8080/ws"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chatmessage.db"
	}
	return filepath.Join(dir, "chatmessage", "session.db")
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
