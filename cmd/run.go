package cmd

import (
	"fmt"

	"github.com/harvestlink/bid-engine/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bid engine HTTP service",
	Long: `Starts the bid engine, which serves:
1. POST/GET /api/lots/{lotID}/bids to place and list bids
2. GET /api/bidders/{bidderID}/bids to list a buyer's bids
3. /api/users/{userID}/notifications to list and mark notifications read
4. /ws/notifications?user_id= for live notification push
5. /metrics, /health and /ready

STORAGE_MODE=memory keeps everything in process; use postgres for a shared ledger.`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
