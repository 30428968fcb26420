package testutil

import (
	"time"

	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// Marketplace fixture IDs.
const (
	LotTomatoes = "lot-1"
	LotApples   = "lot-2"
	LotSoldOut  = "sold-out"

	FarmerTomatoes = "farmer-1"
	FarmerApples   = "farmer-2"
)

// EstablishedBidders have old accounts that trigger no new-account risk.
var EstablishedBidders = []string{"buyer-1", "buyer-2", "buyer-3"}

// CreateTestLot creates a lot with a decimal base price such as "2.50".
func CreateTestLot(id string, ownerID string, basePrice string, quantity int) *types.Lot {
	return &types.Lot{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "Test lot " + id,
		BasePrice: decimal.RequireFromString(basePrice),
		Quantity:  quantity,
	}
}

// CreateTestBid creates a bid with a decimal amount such as "3.10".
func CreateTestBid(id string, lotID string, bidderID string, amount string, status types.BidStatus, createdAt time.Time) *types.Bid {
	return &types.Bid{
		ID:        id,
		LotID:     lotID,
		BidderID:  bidderID,
		Amount:    decimal.RequireFromString(amount),
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// SeedMarketplace loads the standard lots and bidder profiles:
// tomatoes at $2.50 (20 left), apples at $2.00 (5 left) and a sold-out lot.
// Established bidders' accounts are 90 days older than now.
func SeedMarketplace(store *storage.MemoryStorage, now time.Time) {
	store.PutLot(CreateTestLot(LotTomatoes, FarmerTomatoes, "2.50", 20))
	store.PutLot(CreateTestLot(LotApples, FarmerApples, "2.00", 5))
	store.PutLot(CreateTestLot(LotSoldOut, FarmerTomatoes, "1.00", 0))

	for _, bidder := range EstablishedBidders {
		store.PutProfile(bidder, now.Add(-90*24*time.Hour))
	}
}
