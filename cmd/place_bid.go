package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harvestlink/bid-engine/internal/app"
	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var placeBidCmd = &cobra.Command{
	Use:   "place-bid",
	Short: "Submit a single bid and print the outcome",
	Long: `Runs one bid through validation, fraud screening and arbitration.

With STORAGE_MODE=memory the lot and the bidder's profile are seeded from the
--seed-* flags so the command works without a database.

Examples:
  # Bid $3.10 on lot-1 against an in-memory lot listed at $2.50
  bid-engine place-bid --lot lot-1 --bidder buyer-1 --amount 3.10 --seed-base-price 2.50

  # Bid against the shared ledger
  STORAGE_MODE=postgres bid-engine place-bid --lot 7f1c... --bidder 9a2e... --amount 4.00`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runPlaceBid,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(placeBidCmd)
	placeBidCmd.Flags().String("lot", "", "Lot (product) ID to bid on")
	placeBidCmd.Flags().String("bidder", "", "Bidder (buyer) ID")
	placeBidCmd.Flags().String("amount", "", "Bid amount in dollars, e.g. 3.10")
	placeBidCmd.Flags().String("seed-owner", "farmer-1", "Memory mode: owner of the seeded lot")
	placeBidCmd.Flags().String("seed-base-price", "1.00", "Memory mode: base price of the seeded lot")
	placeBidCmd.Flags().Int("seed-quantity", 1, "Memory mode: remaining quantity of the seeded lot")
	placeBidCmd.Flags().Duration("seed-account-age", 30*24*time.Hour, "Memory mode: age of the bidder's account")
	_ = placeBidCmd.MarkFlagRequired("lot")
	_ = placeBidCmd.MarkFlagRequired("bidder")
	_ = placeBidCmd.MarkFlagRequired("amount")
}

type placeBidFlags struct {
	lotID          string
	bidderID       string
	amount         decimal.Decimal
	seedOwner      string
	seedBasePrice  decimal.Decimal
	seedQuantity   int
	seedAccountAge time.Duration
}

func parsePlaceBidFlags(cmd *cobra.Command) (*placeBidFlags, error) {
	f := &placeBidFlags{}
	f.lotID, _ = cmd.Flags().GetString("lot")
	f.bidderID, _ = cmd.Flags().GetString("bidder")
	f.seedOwner, _ = cmd.Flags().GetString("seed-owner")
	f.seedQuantity, _ = cmd.Flags().GetInt("seed-quantity")
	f.seedAccountAge, _ = cmd.Flags().GetDuration("seed-account-age")

	amountStr, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --amount %q: %w", amountStr, err)
	}
	f.amount = amount

	baseStr, _ := cmd.Flags().GetString("seed-base-price")
	base, err := decimal.NewFromString(baseStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --seed-base-price %q: %w", baseStr, err)
	}
	f.seedBasePrice = base

	return f, nil
}

// seed builds the memory-mode catalog entry and profile for a one-shot bid.
func (f *placeBidFlags) seed(now time.Time) *app.Seed {
	return &app.Seed{
		Lots: []*types.Lot{{
			ID:        f.lotID,
			OwnerID:   f.seedOwner,
			BasePrice: f.seedBasePrice,
			Quantity:  f.seedQuantity,
		}},
		Profiles: map[string]time.Time{
			f.bidderID: now.Add(-f.seedAccountAge),
		},
	}
}

func runPlaceBid(cmd *cobra.Command, args []string) error {
	flags, err := parsePlaceBidFlags(cmd)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts := &app.Options{}
	if cfg.StorageMode == config.StorageModeMemory {
		opts.Seed = flags.seed(time.Now())
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		_ = application.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bid, err := application.Engine().PlaceBid(ctx, engine.Request{
		LotID:    flags.lotID,
		BidderID: flags.bidderID,
		Amount:   flags.amount,
	})
	application.WaitForNotifications()

	printPlaceBidResult(os.Stdout, bid, err)
	return err
}

func printPlaceBidResult(w io.Writer, bid *types.Bid, err error) {
	fmt.Fprintln(w, "========================================")
	if err != nil {
		fmt.Fprintln(w, "Bid NOT accepted")
		fmt.Fprintln(w, "========================================")

		var bidErr *types.BidError
		if errors.As(err, &bidErr) {
			fmt.Fprintf(w, "Reason:  %s\n", bidErr.Kind)
			fmt.Fprintf(w, "Message: %s\n", bidErr.Message)
			if bidErr.Kind == types.KindFraudRejected {
				fmt.Fprintf(w, "Risk:    %d\n", bidErr.RiskScore)
			}
			return
		}
		fmt.Fprintf(w, "Error:   %v\n", err)
		return
	}

	fmt.Fprintln(w, "Bid accepted")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Bid ID:  %s\n", bid.ID)
	fmt.Fprintf(w, "Lot:     %s\n", bid.LotID)
	fmt.Fprintf(w, "Bidder:  %s\n", bid.BidderID)
	fmt.Fprintf(w, "Amount:  %s\n", types.FormatAmount(bid.Amount))
	fmt.Fprintf(w, "Status:  %s\n", bid.Status)
}
