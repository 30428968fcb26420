// Package arbitration decides, per lot, whether a candidate bid displaces the current accepted bid.
package arbitration

import (
	"fmt"

	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// State is a lot's arbitration state as read at the start of an attempt.
// Accepted is nil in the no-accepted-bid state.
type State struct {
	LotID     string
	BasePrice decimal.Decimal
	Accepted  *types.Bid
}

// NewState builds the state for a lot from its current accepted bid.
func NewState(lot *types.Lot, accepted *types.Bid) State {
	return State{
		LotID:     lot.ID,
		BasePrice: lot.BasePrice,
		Accepted:  accepted,
	}
}

// HasAccepted reports whether the lot is in the accepted state.
func (s State) HasAccepted() bool {
	return s.Accepted != nil
}

// Reference is the amount a new bid must strictly exceed.
func (s State) Reference() decimal.Decimal {
	if s.Accepted != nil {
		return s.Accepted.Amount
	}
	return s.BasePrice
}

// Transition is the change a commit must apply atomically.
type Transition struct {
	// Expected is the accepted bid the commit must find in the slot (nil for none).
	Expected *types.Bid
	// Accept is the candidate with status accepted.
	Accept *types.Bid
	// Demote is Expected with status outbid, or nil.
	Demote *types.Bid
}

// DisplacedBidderID returns the bidder who loses the accepted slot, or "".
func (t *Transition) DisplacedBidderID() string {
	if t.Expected == nil {
		return ""
	}
	return t.Expected.BidderID
}

// Decide resolves a pending candidate against the state. Ties are rejected.
// The candidate and the state are not modified.
func Decide(state State, candidate *types.Bid) (*Transition, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate cannot be nil")
	}
	if candidate.Status != types.BidStatusPending {
		return nil, fmt.Errorf("candidate %s is %s, not pending", candidate.ID, candidate.Status)
	}
	if candidate.LotID != state.LotID {
		return nil, fmt.Errorf("candidate %s is for lot %s, not %s", candidate.ID, candidate.LotID, state.LotID)
	}

	reference := state.Reference()
	if !candidate.Amount.GreaterThan(reference) {
		return nil, types.NewBidNotHighEnough(reference)
	}

	accept := candidate.Clone()
	accept.Status = types.BidStatusAccepted

	transition := &Transition{
		Expected: state.Accepted,
		Accept:   accept,
	}
	if state.Accepted != nil {
		demote := state.Accepted.Clone()
		demote.Status = types.BidStatusOutbid
		demote.UpdatedAt = candidate.UpdatedAt
		transition.Demote = demote
	}

	return transition, nil
}

// Reject returns a copy of the candidate in the terminal rejected status.
func Reject(candidate *types.Bid, reason string) *types.Bid {
	rejected := candidate.Clone()
	rejected.Status = types.BidStatusRejected
	rejected.RejectionReason = reason
	return rejected
}
