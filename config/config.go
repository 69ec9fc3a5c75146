package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	WS     WSConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// WSConfig holds websocket transport settings. OnFull is the backpressure
// policy when a connection's send buffer is full: "disconnect" reaps the
// participant as a dead peer, "drop" skips the payload and lets the next
// broadcast catch the client up.
type WSConfig struct {
	SendBuffer      int
	OnFull          string
	PingIntervalSec int
	PongWaitSec     int
	WriteWaitSec    int
	MaxMessageBytes int64
}

// LogConfig selects the zap logger flavor.
type LogConfig struct {
	Development bool
}

// DropOnFull reports whether the "drop" backpressure policy is selected.
func (c WSConfig) DropOnFull() bool {
	return c.OnFull == "drop"
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		WS: WSConfig{
			SendBuffer:      getEnvInt("WS_SEND_BUFFER", 256),
			OnFull:          getEnv("WS_ON_FULL", "disconnect"),
			PingIntervalSec: getEnvInt("WS_PING_INTERVAL_SEC", 30),
			PongWaitSec:     getEnvInt("WS_PONG_WAIT_SEC", 60),
			WriteWaitSec:    getEnvInt("WS_WRITE_WAIT_SEC", 10),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 65536)),
		},
		Log: LogConfig{
			Development: getEnv("LOG_MODE", "production") == "development",
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
