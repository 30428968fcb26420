package storage

import (
	"context"
	"errors"
	"time"

	"github.com/harvestlink/bid-engine/pkg/types"
)

var (
	// ErrNotFound is returned when a lot, bid or profile does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write finds the state it expected has changed.
	ErrConflict = errors.New("concurrent modification")
)

// LotCatalog reads produce lots.
type LotCatalog interface {
	// GetLot returns ErrNotFound for unknown lots.
	GetLot(ctx context.Context, lotID string) (*types.Lot, error)
}

// BidLedger is the append-only record of bids.
type BidLedger interface {
	// GetHighestAccepted returns the lot's accepted bid, or nil when there is none.
	GetHighestAccepted(ctx context.Context, lotID string) (*types.Bid, error)

	// InsertBid appends a bid in any status.
	InsertBid(ctx context.Context, bid *types.Bid) error

	// UpdateBidStatus moves a bid from expected to next. Returns ErrConflict when the
	// bid is no longer in expected, or the move is not a legal lifecycle step.
	UpdateBidStatus(ctx context.Context, bidID string, expected, next types.BidStatus, at time.Time) error

	// AcceptBid atomically demotes prior to outbid and inserts bid as accepted.
	// prior is the accepted bid the caller read, or nil if the lot had none.
	// Returns ErrConflict when the lot's accepted slot no longer matches prior.
	AcceptBid(ctx context.Context, prior *types.Bid, bid *types.Bid) error

	// GetRecentBids returns the bidder's newest bids across all lots.
	GetRecentBids(ctx context.Context, bidderID string, limit int) ([]*types.Bid, error)

	// GetRecentBidsOnLot returns the bidder's newest bids on one lot.
	GetRecentBidsOnLot(ctx context.Context, bidderID string, lotID string, limit int) ([]*types.Bid, error)

	// ListLotBids returns every bid on a lot, newest first.
	ListLotBids(ctx context.Context, lotID string) ([]*types.Bid, error)

	// ListBidderBids returns every bid by a bidder, newest first.
	ListBidderBids(ctx context.Context, bidderID string) ([]*types.Bid, error)
}

// ProfileStore reads bidder account metadata.
type ProfileStore interface {
	GetAccountCreatedAt(ctx context.Context, bidderID string) (time.Time, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *types.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error)
	// MarkNotificationsRead marks all of a user's notifications read and returns how many changed.
	MarkNotificationsRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Storage is the full persistence surface of the engine.
type Storage interface {
	LotCatalog
	BidLedger
	ProfileStore
	NotificationStore

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}
