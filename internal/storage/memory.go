package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// MemoryStorage implements Storage in process memory. The per-lot accepted slot is
// guarded by a single mutex so AcceptBid is a compare-and-swap.
type MemoryStorage struct {
	mu            sync.RWMutex
	lots          map[string]*types.Lot
	profiles      map[string]time.Time
	bids          []*types.Bid
	bidsByID      map[string]*types.Bid
	accepted      map[string]string
	notifications []*types.Notification
	logger        *zap.Logger
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("memory-storage-initialized")
	return &MemoryStorage{
		lots:     make(map[string]*types.Lot),
		profiles: make(map[string]time.Time),
		bidsByID: make(map[string]*types.Bid),
		accepted: make(map[string]string),
		logger:   logger,
	}
}

// PutLot inserts or replaces a lot.
func (m *MemoryStorage) PutLot(lot *types.Lot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *lot
	m.lots[lot.ID] = &c
}

// PutProfile records when a bidder's account was created.
func (m *MemoryStorage) PutProfile(bidderID string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[bidderID] = createdAt
}

// GetLot returns a copy of the lot.
func (m *MemoryStorage) GetLot(_ context.Context, lotID string) (*types.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lot, ok := m.lots[lotID]
	if !ok {
		return nil, fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
	}
	c := *lot
	return &c, nil
}

// GetAccountCreatedAt returns the bidder's account creation time.
func (m *MemoryStorage) GetAccountCreatedAt(_ context.Context, bidderID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	createdAt, ok := m.profiles[bidderID]
	if !ok {
		return time.Time{}, fmt.Errorf("profile %s: %w", bidderID, ErrNotFound)
	}
	return createdAt, nil
}

// GetHighestAccepted returns the lot's accepted bid or nil.
func (m *MemoryStorage) GetHighestAccepted(_ context.Context, lotID string) (*types.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.accepted[lotID]
	if !ok {
		return nil, nil
	}
	return m.bidsByID[id].Clone(), nil
}

// InsertBid appends a bid. Accepted bids must go through AcceptBid.
func (m *MemoryStorage) InsertBid(_ context.Context, bid *types.Bid) error {
	if bid.Status == types.BidStatusAccepted {
		return fmt.Errorf("insert bid %s: accepted bids must be committed with AcceptBid", bid.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertLocked(bid)
}

func (m *MemoryStorage) insertLocked(bid *types.Bid) error {
	if _, exists := m.bidsByID[bid.ID]; exists {
		return fmt.Errorf("insert bid %s: duplicate id", bid.ID)
	}
	c := bid.Clone()
	m.bids = append(m.bids, c)
	m.bidsByID[c.ID] = c
	return nil
}

// UpdateBidStatus moves a bid between statuses if it still holds expected.
func (m *MemoryStorage) UpdateBidStatus(_ context.Context, bidID string, expected, next types.BidStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bidsByID[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, ErrNotFound)
	}
	if bid.Status != expected || !expected.CanTransitionTo(next) {
		return fmt.Errorf("bid %s is %s: %w", bidID, bid.Status, ErrConflict)
	}
	if next == types.BidStatusAccepted {
		if _, taken := m.accepted[bid.LotID]; taken {
			return fmt.Errorf("lot %s already has an accepted bid: %w", bid.LotID, ErrConflict)
		}
		m.accepted[bid.LotID] = bid.ID
	}
	if expected == types.BidStatusAccepted && m.accepted[bid.LotID] == bid.ID {
		delete(m.accepted, bid.LotID)
	}

	bid.Status = next
	bid.UpdatedAt = at
	return nil
}

// AcceptBid swaps the lot's accepted slot from prior to bid.
func (m *MemoryStorage) AcceptBid(_ context.Context, prior *types.Bid, bid *types.Bid) error {
	if bid.Status != types.BidStatusAccepted {
		return fmt.Errorf("accept bid %s: status is %s", bid.ID, bid.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, hasCurrent := m.accepted[bid.LotID]
	switch {
	case prior == nil && hasCurrent:
		return fmt.Errorf("lot %s gained an accepted bid: %w", bid.LotID, ErrConflict)
	case prior != nil && (!hasCurrent || current != prior.ID):
		return fmt.Errorf("lot %s accepted bid is no longer %s: %w", bid.LotID, prior.ID, ErrConflict)
	}

	if _, exists := m.bidsByID[bid.ID]; exists {
		return fmt.Errorf("accept bid %s: duplicate id", bid.ID)
	}

	if prior != nil {
		demoted := m.bidsByID[prior.ID]
		demoted.Status = types.BidStatusOutbid
		demoted.UpdatedAt = bid.UpdatedAt
	}

	err := m.insertLocked(bid)
	if err != nil {
		return err
	}
	m.accepted[bid.LotID] = bid.ID

	m.logger.Debug("bid-committed",
		zap.String("lot-id", bid.LotID),
		zap.String("bid-id", bid.ID),
		zap.Bool("displaced", prior != nil))

	return nil
}

// GetRecentBids returns the bidder's newest bids.
func (m *MemoryStorage) GetRecentBids(_ context.Context, bidderID string, limit int) ([]*types.Bid, error) {
	return m.selectBids(func(b *types.Bid) bool { return b.BidderID == bidderID }, limit), nil
}

// GetRecentBidsOnLot returns the bidder's newest bids on one lot.
func (m *MemoryStorage) GetRecentBidsOnLot(_ context.Context, bidderID string, lotID string, limit int) ([]*types.Bid, error) {
	return m.selectBids(func(b *types.Bid) bool {
		return b.BidderID == bidderID && b.LotID == lotID
	}, limit), nil
}

// ListLotBids returns all bids on a lot, newest first.
func (m *MemoryStorage) ListLotBids(_ context.Context, lotID string) ([]*types.Bid, error) {
	return m.selectBids(func(b *types.Bid) bool { return b.LotID == lotID }, 0), nil
}

// ListBidderBids returns all bids by a bidder, newest first.
func (m *MemoryStorage) ListBidderBids(_ context.Context, bidderID string) ([]*types.Bid, error) {
	return m.selectBids(func(b *types.Bid) bool { return b.BidderID == bidderID }, 0), nil
}

// selectBids returns matching bids newest first. Insertion order breaks CreatedAt ties.
func (m *MemoryStorage) selectBids(match func(*types.Bid) bool, limit int) []*types.Bid {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Bid, 0)
	for i := len(m.bids) - 1; i >= 0; i-- {
		if match(m.bids[i]) {
			out = append(out, m.bids[i].Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SaveNotification appends a notification.
func (m *MemoryStorage) SaveNotification(_ context.Context, n *types.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *n
	m.notifications = append(m.notifications, &c)
	return nil
}

// ListNotifications returns the user's newest notifications.
func (m *MemoryStorage) ListNotifications(_ context.Context, userID string, limit int) ([]*types.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserID != userID {
			continue
		}
		c := *m.notifications[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkNotificationsRead marks every unread notification of the user as read.
func (m *MemoryStorage) MarkNotificationsRead(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

// CountUnread counts the user's unread notifications.
func (m *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// Ping always succeeds.
func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	m.logger.Info("closing-memory-storage")
	return nil
}
