package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validConfig() *Config {
	return &Config{
		HTTPPort:              "8080",
		BidMinIncrement:       decimal.RequireFromString("0.50"),
		BidRetryMaxAttempts:   3,
		BidRetryBaseDelay:     200 * time.Millisecond,
		FraudThreshold:        50,
		FraudHistoryLimit:     10,
		FraudLotLookbackLimit: 5,
		NotifyWorkers:         4,
		StorageMode:           StorageModeMemory,
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected HTTP port 8080, got %s", cfg.HTTPPort)
	}
	if !cfg.BidMinIncrement.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("expected min increment 0.50, got %s", cfg.BidMinIncrement)
	}
	if cfg.BidRetryMaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.BidRetryMaxAttempts)
	}
	if cfg.BidRetryBaseDelay != 200*time.Millisecond {
		t.Errorf("expected 200ms base delay, got %v", cfg.BidRetryBaseDelay)
	}
	if cfg.BidRetryMaxWallTime != 0 {
		t.Errorf("expected no wall-clock ceiling, got %v", cfg.BidRetryMaxWallTime)
	}
	if cfg.FraudThreshold != 50 {
		t.Errorf("expected fraud threshold 50, got %d", cfg.FraudThreshold)
	}
	if cfg.FraudHistoryLimit != 10 || cfg.FraudLotLookbackLimit != 5 {
		t.Errorf("unexpected fraud limits %d/%d", cfg.FraudHistoryLimit, cfg.FraudLotLookbackLimit)
	}
	if cfg.StorageMode != StorageModeMemory {
		t.Errorf("expected memory storage, got %s", cfg.StorageMode)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BID_MIN_INCREMENT", "1.25")
	t.Setenv("BID_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("BID_RETRY_BASE_DELAY", "50ms")
	t.Setenv("BID_RETRY_MAX_WALL_TIME", "3s")
	t.Setenv("FRAUD_THRESHOLD", "60")
	t.Setenv("FRAUD_RAPID_BID_WINDOW", "10m")
	t.Setenv("STORAGE_MODE", "postgres")
	t.Setenv("POSTGRES_DB", "bids_test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPPort != "9090" {
		t.Errorf("expected 9090, got %s", cfg.HTTPPort)
	}
	if !cfg.BidMinIncrement.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("expected 1.25, got %s", cfg.BidMinIncrement)
	}
	if cfg.BidRetryMaxAttempts != 5 {
		t.Errorf("expected 5, got %d", cfg.BidRetryMaxAttempts)
	}
	if cfg.BidRetryBaseDelay != 50*time.Millisecond {
		t.Errorf("expected 50ms, got %v", cfg.BidRetryBaseDelay)
	}
	if cfg.BidRetryMaxWallTime != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.BidRetryMaxWallTime)
	}
	if cfg.FraudThreshold != 60 {
		t.Errorf("expected 60, got %d", cfg.FraudThreshold)
	}
	if cfg.FraudRapidBidWindow != 10*time.Minute {
		t.Errorf("expected 10m, got %v", cfg.FraudRapidBidWindow)
	}
	if cfg.StorageMode != StorageModePostgres || cfg.PostgresDB != "bids_test" {
		t.Errorf("unexpected storage config %s/%s", cfg.StorageMode, cfg.PostgresDB)
	}
}

func TestLoadFromEnv_UnparseableValuesFallBack(t *testing.T) {
	t.Setenv("BID_MIN_INCREMENT", "fifty cents")
	t.Setenv("BID_RETRY_MAX_ATTEMPTS", "three")
	t.Setenv("NOTIFY_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !cfg.BidMinIncrement.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("expected default increment, got %s", cfg.BidMinIncrement)
	}
	if cfg.BidRetryMaxAttempts != 3 {
		t.Errorf("expected default attempts, got %d", cfg.BidRetryMaxAttempts)
	}
	if cfg.NotifyTimeout != 5*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.NotifyTimeout)
	}
}

func TestLoadFromEnv_InvalidStorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "console")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "STORAGE_MODE") {
		t.Errorf("expected STORAGE_MODE error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.HTTPPort = "" }, "HTTP_PORT cannot be empty"},
		{"zero increment", func(c *Config) { c.BidMinIncrement = decimal.Zero }, "BID_MIN_INCREMENT must be positive, got 0"},
		{"zero attempts", func(c *Config) { c.BidRetryMaxAttempts = 0 }, "BID_RETRY_MAX_ATTEMPTS must be at least 1, got 0"},
		{"negative delay", func(c *Config) { c.BidRetryBaseDelay = -time.Second }, "BID_RETRY_BASE_DELAY cannot be negative, got -1s"},
		{"negative wall time", func(c *Config) { c.BidRetryMaxWallTime = -time.Second }, "BID_RETRY_MAX_WALL_TIME cannot be negative, got -1s"},
		{"zero threshold", func(c *Config) { c.FraudThreshold = 0 }, "FRAUD_THRESHOLD must be positive, got 0"},
		{"zero history", func(c *Config) { c.FraudHistoryLimit = 0 }, "FRAUD_HISTORY_LIMIT and FRAUD_LOT_LOOKBACK_LIMIT must be positive"},
		{"zero workers", func(c *Config) { c.NotifyWorkers = 0 }, "NOTIFY_WORKERS must be at least 1, got 0"},
		{"postgres", func(c *Config) { c.StorageMode = StorageModePostgres }, ""},
		{"console", func(c *Config) { c.StorageMode = "console" }, `STORAGE_MODE must be 'memory' or 'postgres', got "console"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
