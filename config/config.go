package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string
	LogLevel      string

	// Recorder
	RecordInterval   time.Duration
	HistoryRetention time.Duration
	PruneInterval    time.Duration

	// Ops: TOTP secret guarding the destructive reset endpoint.
	// Empty disables the endpoint entirely.
	AdminTOTPSecret string

	// Simulated market feed (no real exchange connectivity)
	SimMode      bool
	SimTokens    string // comma-separated token symbols
	SimExchanges string // comma-separated exchange names
}

// Load reads configuration from a .env file (when present) and the
// environment, with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/arbdesk.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RecordInterval:   getDuration("RECORD_INTERVAL", 30*time.Second),
		HistoryRetention: getDuration("HISTORY_RETENTION", 168*time.Hour),
		PruneInterval:    getDuration("PRUNE_INTERVAL", 24*time.Hour),

		AdminTOTPSecret: getEnv("ADMIN_TOTP_SECRET", ""),

		SimMode:      getBool("SIM_MODE", false),
		SimTokens:    getEnv("SIM_TOKENS", "BTC,ETH,SOL"),
		SimExchanges: getEnv("SIM_EXCHANGES", "hyperliquid,binance,bybit"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using default", key, v)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
