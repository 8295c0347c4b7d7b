package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_API_URL", "")
	t.Setenv("CHAT_WS_URL", "")
	t.Setenv("CHAT_TYPING_DEBOUNCE_MS", "")

	cfg := Load()
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.TypingDebounce)
	assert.Equal(t, 2*time.Second, cfg.StopTypingDelay)
	assert.NotEmpty(t, cfg.SessionFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_API_URL", "https://chat.example.com/")
	t.Setenv("CHAT_TYPING_DEBOUNCE_MS", "250")
	t.Setenv("CHAT_STOP_TYPING_DELAY_MS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "https://chat.example.com", cfg.APIURL)
	assert.Equal(t, "wss://chat.example.com/ws", cfg.WSURL)
	assert.Equal(t, 250*time.Millisecond, cfg.TypingDebounce)
	assert.Equal(t, 2*time.Second, cfg.StopTypingDelay)
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.1:9000/ws", deriveWSURL("http://10.0.0.1:9000"))
	assert.Equal(t, "wss://host/base/ws", deriveWSURL("https://host/base/"))
	assert.Equal(t, "ws://localhost:8080/ws", deriveWSURL("::bad"))
}
