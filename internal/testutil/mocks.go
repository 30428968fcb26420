package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/pkg/types"
)

// SentNotification is one call recorded by RecordingNotifier.
type SentNotification struct {
	UserID      string
	Kind        types.NotificationKind
	Title       string
	Message     string
	ReferenceID string
}

// RecordingNotifier records notifications synchronously.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
}

// Notify records the call.
func (r *RecordingNotifier) Notify(_ context.Context, userID string, kind types.NotificationKind, title, message, referenceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentNotification{userID, kind, title, message, referenceID})
}

// All returns a copy of every recorded notification.
func (r *RecordingNotifier) All() []SentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentNotification(nil), r.sent...)
}

// FlakyLedger forces conflicts or failures on AcceptBid before delegating.
type FlakyLedger struct {
	storage.BidLedger

	mu        sync.Mutex
	conflicts int
	failWith  error
	commits   int
}

// NewFlakyLedger wraps ledger.
func NewFlakyLedger(ledger storage.BidLedger) *FlakyLedger {
	return &FlakyLedger{BidLedger: ledger}
}

// ConflictNext makes the next n AcceptBid calls return storage.ErrConflict.
func (f *FlakyLedger) ConflictNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts = n
}

// FailWith makes every AcceptBid call return err.
func (f *FlakyLedger) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// Commits returns how many times AcceptBid was called.
func (f *FlakyLedger) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// AcceptBid fails as configured, otherwise delegates.
func (f *FlakyLedger) AcceptBid(ctx context.Context, prior *types.Bid, bid *types.Bid) error {
	f.mu.Lock()
	f.commits++
	if f.failWith != nil {
		err := f.failWith
		f.mu.Unlock()
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return fmt.Errorf("forced: %w", storage.ErrConflict)
	}
	f.mu.Unlock()
	return f.BidLedger.AcceptBid(ctx, prior, bid)
}
