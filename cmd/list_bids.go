package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harvestlink/bid-engine/internal/app"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listBidsCmd = &cobra.Command{
	Use:   "list-bids",
	Short: "List bids on a lot or by a bidder",
	Long: `Lists bids newest first, including rejected and outbid bids.

Examples:
  # Bids on a lot
  STORAGE_MODE=postgres bid-engine list-bids --lot 7f1c...

  # Bids placed by a buyer
  STORAGE_MODE=postgres bid-engine list-bids --bidder 9a2e...`,
	Args: cobra.NoArgs,
	RunE: runListBids,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listBidsCmd)
	listBidsCmd.Flags().String("lot", "", "List bids on this lot")
	listBidsCmd.Flags().String("bidder", "", "List bids placed by this bidder")
	listBidsCmd.MarkFlagsMutuallyExclusive("lot", "bidder")
}

func runListBids(cmd *cobra.Command, args []string) error {
	lotID, _ := cmd.Flags().GetString("lot")
	bidderID, _ := cmd.Flags().GetString("bidder")
	if lotID == "" && bidderID == "" {
		return errors.New("one of --lot or --bidder is required")
	}

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
	defer func() {
		_ = application.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var bids []*types.Bid
	if lotID != "" {
		bids, err = application.Engine().ListLotBids(ctx, lotID)
	} else {
		bids, err = application.Engine().ListBidderBids(ctx, bidderID)
	}
	if err != nil {
		return fmt.Errorf("list bids: %w", err)
	}

	if len(bids) == 0 {
		fmt.Println("No bids found.")
		return nil
	}

	printBidTable(os.Stdout, bids)
	return nil
}

func printBidTable(out io.Writer, bids []*types.Bid) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "BID\tLOT\tBIDDER\tAMOUNT\tSTATUS\tPLACED\tREASON\n")
	fmt.Fprintf(w, "---\t---\t------\t------\t------\t------\t------\n")

	for _, bid := range bids {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			bid.ID,
			bid.LotID,
			bid.BidderID,
			types.FormatAmount(bid.Amount),
			bid.Status,
			bid.CreatedAt.UTC().Format(time.RFC3339),
			bid.RejectionReason)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nTotal: %d bids\n", len(bids))
}
