// Package config provides process-bootstrap configuration for the Brain.
//
// Configuration Loading Order:
// 1. Load from .env file (if present)
// 2. Load from environment variables
//
// Everything that can change without a process restart (risk thresholds,
// tier boundaries, sweep schedule, ...) belongs in the Config Registry, not
// here — this package only carries the handful of values a process needs
// before it can even open its databases: the data directory, the HMAC
// signing secret, the initial equity seed, and the HTTP port.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process bootstrap configuration.
type Config struct {
	DataDir       string  // base directory for the Brain's SQLite databases
	HMACSecret    string  // shared secret for config-receipt signatures
	InitialEquity float64 // seed value for equity when treasury_state is empty
	LogLevel      string  // debug, info, warn, error
	LogPretty     bool    // pretty console logging for local development
	Port          int     // HTTP admission server port
	DevMode       bool
	Venue         string // execution venue this brain instance publishes orders to
	Account       string // execution account within Venue
	EvtArchiveBucket string // S3/R2 bucket for cold-archived EVT envelopes

	ExchangeBaseURL  string // exchange REST base URL for treasury sweeps
	ExchangeAPIKey   string
	ExchangeAPISecret string
}

// Load reads configuration from environment variables (and .env if present).
//
// dataDirOverride - optional CLI override for the data directory (highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("BRAIN_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		HMACSecret:    getEnv("BRAIN_HMAC_SECRET", ""),
		InitialEquity: getEnvAsFloat("BRAIN_INITIAL_EQUITY", 1000),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		Port:          getEnvAsInt("BRAIN_PORT", 8090),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		Venue:         getEnv("BRAIN_VENUE", "binance"),
		Account:       getEnv("BRAIN_ACCOUNT", "default"),
		EvtArchiveBucket: getEnv("BRAIN_EVT_ARCHIVE_BUCKET", ""),
		ExchangeBaseURL:   getEnv("BRAIN_EXCHANGE_BASE_URL", ""),
		ExchangeAPIKey:    getEnv("BRAIN_EXCHANGE_API_KEY", ""),
		ExchangeAPISecret: getEnv("BRAIN_EXCHANGE_API_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the values required to run safely are present.
func (c *Config) Validate() error {
	if c.HMACSecret == "" {
		return fmt.Errorf("BRAIN_HMAC_SECRET is required: config receipts cannot be signed without it")
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
