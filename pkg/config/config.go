package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Storage modes.
const (
	StorageModeMemory   = "memory"
	StorageModePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Bidding
	BidMinIncrement     decimal.Decimal
	BidRetryMaxAttempts int
	BidRetryBaseDelay   time.Duration
	BidRetryMaxWallTime time.Duration

	// Fraud screening
	FraudThreshold        int
	FraudHistoryLimit     int
	FraudLotLookbackLimit int
	FraudRapidBidWindow   time.Duration
	ProfileCacheTTL       time.Duration

	// Notifications
	NotifyWorkers  int
	NotifyTimeout  time.Duration
	WSPingInterval time.Duration

	// Storage
	StorageMode  string // "memory" or "postgres"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Bidding defaults
		BidMinIncrement:     getDecimalOrDefault("BID_MIN_INCREMENT", decimal.RequireFromString("0.50")),
		BidRetryMaxAttempts: getIntOrDefault("BID_RETRY_MAX_ATTEMPTS", 3),
		BidRetryBaseDelay:   getDurationOrDefault("BID_RETRY_BASE_DELAY", 200*time.Millisecond),
		BidRetryMaxWallTime: getDurationOrDefault("BID_RETRY_MAX_WALL_TIME", 0),

		// Fraud defaults
		FraudThreshold:        getIntOrDefault("FRAUD_THRESHOLD", 50),
		FraudHistoryLimit:     getIntOrDefault("FRAUD_HISTORY_LIMIT", 10),
		FraudLotLookbackLimit: getIntOrDefault("FRAUD_LOT_LOOKBACK_LIMIT", 5),
		FraudRapidBidWindow:   getDurationOrDefault("FRAUD_RAPID_BID_WINDOW", 0),
		ProfileCacheTTL:       getDurationOrDefault("PROFILE_CACHE_TTL", 10*time.Minute),

		// Notification defaults
		NotifyWorkers:  getIntOrDefault("NOTIFY_WORKERS", 4),
		NotifyTimeout:  getDurationOrDefault("NOTIFY_TIMEOUT", 5*time.Second),
		WSPingInterval: getDurationOrDefault("WS_PING_INTERVAL", 30*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", StorageModeMemory),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "harvest"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "harvest123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "harvest_bids"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if !c.BidMinIncrement.IsPositive() {
		return fmt.Errorf("BID_MIN_INCREMENT must be positive, got %s", c.BidMinIncrement)
	}

	if c.BidRetryMaxAttempts < 1 {
		return fmt.Errorf("BID_RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.BidRetryMaxAttempts)
	}

	if c.BidRetryBaseDelay < 0 {
		return fmt.Errorf("BID_RETRY_BASE_DELAY cannot be negative, got %v", c.BidRetryBaseDelay)
	}

	if c.BidRetryMaxWallTime < 0 {
		return fmt.Errorf("BID_RETRY_MAX_WALL_TIME cannot be negative, got %v", c.BidRetryMaxWallTime)
	}

	if c.FraudThreshold <= 0 {
		return fmt.Errorf("FRAUD_THRESHOLD must be positive, got %d", c.FraudThreshold)
	}

	if c.FraudHistoryLimit <= 0 || c.FraudLotLookbackLimit <= 0 {
		return fmt.Errorf("FRAUD_HISTORY_LIMIT and FRAUD_LOT_LOOKBACK_LIMIT must be positive")
	}

	if c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1, got %d", c.NotifyWorkers)
	}

	if c.StorageMode != StorageModeMemory && c.StorageMode != StorageModePostgres {
		return fmt.Errorf("STORAGE_MODE must be 'memory' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDecimalOrDefault(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return defaultValue
	}

	return d
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
