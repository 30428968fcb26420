// Package notify delivers bid notifications to lot owners and displaced bidders.
// Delivery is fire-and-forget: failures are logged and never reach the bidder.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/workpool"
	"github.com/google/uuid"
	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// Defaults for the delivery pool.
const (
	DefaultWorkers = 4
	DefaultTimeout = 5 * time.Second
)

// Sink is a delivery target for notifications.
type Sink interface {
	Notify(ctx context.Context, n types.Notification) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, n types.Notification) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n types.Notification) error {
	return f(ctx, n)
}

// Config holds emitter configuration.
type Config struct {
	Sinks   []Sink
	Workers int
	// Timeout bounds each sink call.
	Timeout time.Duration
	Clock   clock.Clock
	Logger  *zap.Logger
	NewID   func() string
}

// Emitter fans notifications out to its sinks on a bounded worker pool.
type Emitter struct {
	sinks   []Sink
	pool    *workpool.WorkPool
	timeout time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	newID   func() string

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewEmitter creates an emitter and starts its workers.
func NewEmitter(cfg *Config) (*Emitter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	pool, err := workpool.NewWorkPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create work pool: %w", err)
	}

	return &Emitter{
		sinks:   cfg.Sinks,
		pool:    pool,
		timeout: timeout,
		clock:   clk,
		logger:  logger,
		newID:   newID,
	}, nil
}

// Notify queues a notification for userID and returns immediately.
// The caller's cancellation does not abort delivery.
func (e *Emitter) Notify(ctx context.Context, userID string, kind types.NotificationKind, title, message, referenceID string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		DroppedTotal.Inc()
		e.logger.Warn("notification-dropped-emitter-closed",
			zap.String("user-id", userID),
			zap.String("kind", string(kind)))
		return
	}

	n := types.Notification{
		ID:          e.newID(),
		UserID:      userID,
		Kind:        kind,
		Title:       title,
		Message:     message,
		ReferenceID: referenceID,
		CreatedAt:   e.clock.Now(),
	}
	detached := context.WithoutCancel(ctx)

	e.wg.Add(1)
	e.pool.Submit(func() {
		defer e.wg.Done()
		e.deliver(detached, n)
	})
}

func (e *Emitter) deliver(ctx context.Context, n types.Notification) {
	for _, sink := range e.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := sink.Notify(sinkCtx, n)
		cancel()

		if err != nil {
			DeliveryFailuresTotal.WithLabelValues(string(n.Kind)).Inc()
			e.logger.Warn("notification-delivery-failed",
				zap.String("notification-id", n.ID),
				zap.String("user-id", n.UserID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
		}
	}

	DispatchedTotal.WithLabelValues(string(n.Kind)).Inc()
	e.logger.Debug("notification-dispatched",
		zap.String("notification-id", n.ID),
		zap.String("user-id", n.UserID),
		zap.String("kind", string(n.Kind)))
}

// Wait blocks until every queued notification has been handled.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

// Close stops accepting notifications, drains the queue and stops the workers.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	e.pool.Stop()
	e.logger.Info("notification-emitter-closed")
}
