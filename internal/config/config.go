package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults match the reference deployment.
const (
	DefaultPort            = "3000"
	DefaultMaxHistory      = 100
	DefaultTrimInterval    = 5 * time.Minute
	DefaultMaxPayloadBytes = 50 << 20 // 50 MiB
)

// Config holds all runtime configuration for the relay.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string

	// AllowedOrigins are the origins accepted during the websocket upgrade.
	// "*" allows any origin.
	AllowedOrigins []string

	// MaxHistory caps the in-memory message history buffer.
	MaxHistory int

	// TrimInterval is how often the history safety-net trim runs.
	TrimInterval time.Duration

	// MaxPayloadBytes bounds a single inbound websocket frame.
	MaxPayloadBytes int64
}

// New loads configuration from environment variables, reading a .env file
// first if one exists.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:            DefaultPort,
		AllowedOrigins:  []string{"*"},
		MaxHistory:      DefaultMaxHistory,
		TrimInterval:    DefaultTrimInterval,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxHistory := os.Getenv("MAX_HISTORY"); maxHistory != "" {
		cfg.MaxHistory = parsePositiveInt(maxHistory, cfg.MaxHistory)
	}
	if interval := os.Getenv("TRIM_INTERVAL_MS"); interval != "" {
		cfg.TrimInterval = parseMillis(interval, cfg.TrimInterval)
	}
	if maxPayload := os.Getenv("MAX_PAYLOAD_BYTES"); maxPayload != "" {
		cfg.MaxPayloadBytes = parsePositiveInt64(maxPayload, cfg.MaxPayloadBytes)
	}

	return cfg
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePositiveInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func parsePositiveInt64(value string, fallback int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func parseMillis(value string, fallback time.Duration) time.Duration {
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
