package arbitration

import (
	"errors"
	"testing"
	"time"

	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func lot(basePrice string) *types.Lot {
	return &types.Lot{ID: "lot-1", OwnerID: "farmer-1", BasePrice: decimal.RequireFromString(basePrice), Quantity: 10}
}

func pending(id string, bidder string, amount string) *types.Bid {
	return &types.Bid{
		ID:        id,
		LotID:     "lot-1",
		BidderID:  bidder,
		Amount:    decimal.RequireFromString(amount),
		Status:    types.BidStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func accepted(id string, bidder string, amount string) *types.Bid {
	b := pending(id, bidder, amount)
	b.Status = types.BidStatusAccepted
	b.CreatedAt = now.Add(-time.Hour)
	b.UpdatedAt = b.CreatedAt
	return b
}

func TestDecide_FirstBidAboveBasePrice(t *testing.T) {
	state := NewState(lot("2.50"), nil)

	transition, err := Decide(state, pending("bid-1", "buyer-1", "2.80"))
	require.NoError(t, err)

	assert.Equal(t, types.BidStatusAccepted, transition.Accept.Status)
	assert.Nil(t, transition.Expected)
	assert.Nil(t, transition.Demote)
	assert.Equal(t, "", transition.DisplacedBidderID())
}

func TestDecide_AtBasePriceIsRejected(t *testing.T) {
	state := NewState(lot("2.50"), nil)

	_, err := Decide(state, pending("bid-1", "buyer-1", "2.50"))
	require.Error(t, err)

	var bidErr *types.BidError
	require.True(t, errors.As(err, &bidErr))
	assert.Equal(t, types.KindBidNotHighEnough, bidErr.Kind)
	assert.True(t, bidErr.CurrentHighest.Equal(decimal.RequireFromString("2.50")))
}

func TestDecide_LowerThanAcceptedIsRejected(t *testing.T) {
	state := NewState(lot("2.50"), accepted("bid-1", "buyer-1", "2.80"))

	_, err := Decide(state, pending("bid-2", "buyer-2", "2.75"))

	assert.True(t, errors.Is(err, types.ErrBidNotHighEnough))
	assert.Equal(t, "Your bid must be higher than the current highest bid of $2.80", err.Error())
}

func TestDecide_TieIsRejected(t *testing.T) {
	state := NewState(lot("2.50"), accepted("bid-1", "buyer-1", "3.00"))

	_, err := Decide(state, pending("bid-2", "buyer-2", "3.00"))

	assert.True(t, errors.Is(err, types.ErrBidNotHighEnough))
}

func TestDecide_HigherBidDemotesAccepted(t *testing.T) {
	prior := accepted("bid-1", "buyer-1", "3.00")
	state := NewState(lot("2.50"), prior)
	candidate := pending("bid-2", "buyer-2", "3.10")

	transition, err := Decide(state, candidate)
	require.NoError(t, err)

	assert.Same(t, prior, transition.Expected)
	assert.Equal(t, "bid-1", transition.Demote.ID)
	assert.Equal(t, types.BidStatusOutbid, transition.Demote.Status)
	assert.Equal(t, now, transition.Demote.UpdatedAt)
	assert.Equal(t, types.BidStatusAccepted, transition.Accept.Status)
	assert.Equal(t, "buyer-1", transition.DisplacedBidderID())

	// Inputs are left untouched.
	assert.Equal(t, types.BidStatusAccepted, prior.Status)
	assert.Equal(t, types.BidStatusPending, candidate.Status)
}

func TestDecide_AcceptedAmountStrictlyIncreases(t *testing.T) {
	state := NewState(lot("1.00"), nil)
	amounts := []string{"1.50", "1.50", "1.40", "2.00", "2.01", "1.99", "5.00"}

	var history []*types.Bid
	for i, amount := range amounts {
		transition, err := Decide(state, pending(string(rune('a'+i)), "buyer", amount))
		if err != nil {
			continue
		}
		require.True(t, transition.Accept.Amount.GreaterThan(state.Reference()))
		history = append(history, transition.Accept)
		state.Accepted = transition.Accept
	}

	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Amount.GreaterThan(history[i-1].Amount))
	}
}

func TestDecide_RejectsNonPendingCandidate(t *testing.T) {
	state := NewState(lot("2.50"), nil)

	_, err := Decide(state, accepted("bid-1", "buyer-1", "9.00"))
	assert.Error(t, err)
	assert.Equal(t, types.ErrorKind(""), types.KindOf(err))
}

func TestDecide_RejectsForeignLot(t *testing.T) {
	state := NewState(lot("2.50"), nil)
	candidate := pending("bid-1", "buyer-1", "9.00")
	candidate.LotID = "lot-2"

	_, err := Decide(state, candidate)
	assert.Error(t, err)
}

func TestReject(t *testing.T) {
	candidate := pending("bid-1", "buyer-1", "600")

	rejected := Reject(candidate, types.FraudRejectionReason(70))

	assert.Equal(t, types.BidStatusRejected, rejected.Status)
	assert.Equal(t, "Fraud risk score: 70", rejected.RejectionReason)
	assert.Equal(t, types.BidStatusPending, candidate.Status)
}
