package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "bid-engine",
	Short: "Produce marketplace bid arbitration and fraud-screening engine",
	Long: `Bid engine for the produce marketplace. It validates bids on farmers' lots,
screens them with a fraud risk score, and accepts at most one highest bid per
lot under optimistic concurrency. Lot owners and outbid buyers are notified
after every accepted bid.

Configuration is read from the environment and an optional .env file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
