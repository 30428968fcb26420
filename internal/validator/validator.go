package validator

import (
	"strings"
	"time"

	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// DefaultMinIncrement is the smallest bid unit accepted by the marketplace.
var DefaultMinIncrement = decimal.RequireFromString("0.50")

// Validator performs the stateless checks on a bid submission.
type Validator struct {
	minIncrement decimal.Decimal
}

// Config holds validator configuration.
type Config struct {
	MinIncrement decimal.Decimal
}

// Intent is a bid submission that passed validation.
type Intent struct {
	LotID    string
	BidderID string
	Amount   decimal.Decimal
}

// New creates a validator. A zero MinIncrement falls back to DefaultMinIncrement.
func New(cfg Config) *Validator {
	minIncrement := cfg.MinIncrement
	if !minIncrement.IsPositive() {
		minIncrement = DefaultMinIncrement
	}
	return &Validator{minIncrement: minIncrement}
}

// MinIncrement returns the configured minimum increment.
func (v *Validator) MinIncrement() decimal.Decimal {
	return v.minIncrement
}

// Validate checks identifiers and amount. It has no side effects.
func (v *Validator) Validate(lotID string, bidderID string, amount decimal.Decimal) (*Intent, error) {
	lotID = strings.TrimSpace(lotID)
	bidderID = strings.TrimSpace(bidderID)

	if lotID == "" {
		return nil, types.NewInvalidRequest("Product ID is required")
	}
	if bidderID == "" {
		return nil, types.NewInvalidRequest("You must be logged in to place a bid")
	}

	if !amount.IsPositive() {
		return nil, types.NewInvalidAmount()
	}

	// Currency has two fraction digits; half-up.
	amount = amount.Round(2)

	if amount.LessThan(v.minIncrement) {
		return nil, types.NewBelowMinimumIncrement(v.minIncrement)
	}

	return &Intent{
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   amount,
	}, nil
}

// NewBid materializes the intent as a pending bid.
func (i *Intent) NewBid(id string, now time.Time) *types.Bid {
	return &types.Bid{
		ID:        id,
		LotID:     i.LotID,
		BidderID:  i.BidderID,
		Amount:    i.Amount,
		Status:    types.BidStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
