package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL schema",
	Long: `Creates the products, bids, profiles and notifications tables and their
indexes, including the unique index that allows one accepted bid per lot.
Statements are idempotent and safe to re-run.

Examples:
  STORAGE_MODE=postgres bid-engine migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.StorageMode != config.StorageModePostgres {
		return errors.New("migrate requires STORAGE_MODE=postgres")
	}

	pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = pg.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Info("migration-complete", zap.String("database", cfg.PostgresDB))
	fmt.Println("Schema is up to date.")
	return nil
}
