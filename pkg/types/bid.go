package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus is the lifecycle state of a bid.
type BidStatus string

// Bid statuses. Rejected and outbid are terminal.
const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
	BidStatusOutbid   BidStatus = "outbid"
)

// IsTerminal reports whether a bid in this status can never transition again.
func (s BidStatus) IsTerminal() bool {
	return s == BidStatusRejected || s == BidStatusOutbid
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
// pending -> accepted | rejected, accepted -> outbid. Nothing leaves a terminal status.
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	switch s {
	case BidStatusPending:
		return next == BidStatusAccepted || next == BidStatusRejected
	case BidStatusAccepted:
		return next == BidStatusOutbid
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusPending, BidStatusAccepted, BidStatusRejected, BidStatusOutbid:
		return true
	}
	return false
}

// Bid is a single monetary offer by a bidder on a lot.
type Bid struct {
	ID              string          `json:"id"`
	LotID           string          `json:"lot_id"`
	BidderID        string          `json:"bidder_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          BidStatus       `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a copy of the bid that can be mutated independently.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// FormatAmount renders a currency amount the way bidders see it, e.g. "$2.80".
func FormatAmount(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
