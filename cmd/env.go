package cmd

import (
	"fmt"
	"os"

	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// loadConfig reads .env when present, then the environment.
func loadConfig() (*config.Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLoggerAtLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}
