// Package engine places bids: validation, fraud screening and arbitration run
// inside an optimistic-concurrency retry loop, and notifications go out after commit.
package engine

import (
	"context"
	"errors"
	"fmt"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/harvestlink/bid-engine/internal/arbitration"
	"github.com/harvestlink/bid-engine/internal/fraud"
	"github.com/harvestlink/bid-engine/internal/retry"
	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/internal/validator"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notification titles and messages shown to users.
const (
	OwnerTitle     = "New Bid Received"
	OutbidTitle    = "You Have Been Outbid"
	outbidMessage  = "Someone has placed a higher bid on a product you were bidding on"
	ownerMsgFormat = "A new bid of %s was placed on your product"
)

// Notifier is the fire-and-forget notification side channel.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind types.NotificationKind, title, message, referenceID string)
}

// Assessor scores a bid attempt for fraud.
type Assessor interface {
	Assess(ctx context.Context, req fraud.Request) *fraud.Assessment
}

// Config holds engine dependencies.
type Config struct {
	Lots      storage.LotCatalog
	Bids      storage.BidLedger
	Validator *validator.Validator
	Scorer    Assessor
	Retry     *retry.Controller
	Notifier  Notifier
	Clock     clock.Clock
	Logger    *zap.Logger
	NewID     func() string
}

// Engine places bids on lots.
type Engine struct {
	lots      storage.LotCatalog
	bids      storage.BidLedger
	validator *validator.Validator
	scorer    Assessor
	retry     *retry.Controller
	notifier  Notifier
	clock     clock.Clock
	logger    *zap.Logger
	newID     func() string
}

// Request is a bid submission.
type Request struct {
	LotID    string
	BidderID string
	Amount   decimal.Decimal
}

type staged struct {
	userID  string
	kind    types.NotificationKind
	title   string
	message string
	lotID   string
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, types.NotificationKind, string, string, string) {}

// New creates an engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Lots == nil {
		return nil, fmt.Errorf("lot catalog cannot be nil")
	}
	if cfg.Bids == nil {
		return nil, fmt.Errorf("bid ledger cannot be nil")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("fraud scorer cannot be nil")
	}

	e := &Engine{
		lots:      cfg.Lots,
		bids:      cfg.Bids,
		validator: cfg.Validator,
		scorer:    cfg.Scorer,
		retry:     cfg.Retry,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		newID:     cfg.NewID,
	}
	if e.clock == nil {
		e.clock = clock.NewClock()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.validator == nil {
		e.validator = validator.New(validator.Config{})
	}
	if e.retry == nil {
		e.retry = retry.NewController(retry.DefaultPolicy(e.clock), e.logger)
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}

	return e, nil
}

// PlaceBid validates, screens and arbitrates a bid. It returns the accepted bid or a
// *types.BidError describing why the bid was not accepted.
func (e *Engine) PlaceBid(ctx context.Context, req Request) (*types.Bid, error) {
	start := e.clock.Now()
	BidsSubmittedTotal.Inc()

	bid, err := e.placeBid(ctx, req)
	PlaceBidDuration.Observe(e.clock.Since(start).Seconds())

	if err != nil {
		kind := types.KindOf(err)
		if kind == "" {
			kind = types.KindPersistence
		}
		BidsRejectedTotal.WithLabelValues(string(kind)).Inc()
		e.logger.Info("bid-not-accepted",
			zap.String("lot-id", req.LotID),
			zap.String("bidder-id", req.BidderID),
			zap.String("amount", req.Amount.String()),
			zap.String("reason", string(kind)),
			zap.Error(err))
		return nil, err
	}

	BidsAcceptedTotal.Inc()
	e.logger.Info("bid-accepted",
		zap.String("bid-id", bid.ID),
		zap.String("lot-id", bid.LotID),
		zap.String("bidder-id", bid.BidderID),
		zap.String("amount", bid.Amount.StringFixed(2)))

	return bid, nil
}

func (e *Engine) placeBid(ctx context.Context, req Request) (*types.Bid, error) {
	intent, err := e.validator.Validate(req.LotID, req.BidderID, req.Amount)
	if err != nil {
		return nil, err
	}

	bidID := e.newID()

	var (
		accepted *types.Bid
		pending  []staged
	)
	err = e.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		AttemptsTotal.Inc()

		bid, notes, attemptErr := e.attempt(ctx, intent, bidID)
		if attemptErr != nil {
			return attemptErr
		}
		accepted, pending = bid, notes
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, retry.ErrExhausted):
		return nil, types.NewConcurrencyExhausted(err)
	case types.KindOf(err) != "":
		return nil, err
	default:
		return nil, types.NewPersistenceError("place bid", err)
	}

	for _, n := range pending {
		e.notifier.Notify(ctx, n.userID, n.kind, n.title, n.message, n.lotID)
	}

	return accepted, nil
}

// attempt runs one read-decide-commit cycle against the lot's current state.
func (e *Engine) attempt(ctx context.Context, intent *validator.Intent, bidID string) (*types.Bid, []staged, error) {
	lot, err := e.lots.GetLot(ctx, intent.LotID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, types.NewLotNotFound(intent.LotID, err)
	}
	if err != nil {
		return nil, nil, types.NewPersistenceError("get lot", err)
	}
	if !lot.Available() {
		return nil, nil, types.NewProductUnavailable()
	}

	prior, err := e.bids.GetHighestAccepted(ctx, lot.ID)
	if err != nil {
		return nil, nil, types.NewPersistenceError("get highest accepted bid", err)
	}

	candidate := intent.NewBid(bidID, e.clock.Now())

	assessment := e.scorer.Assess(ctx, fraud.Request{
		BidderID:  intent.BidderID,
		LotID:     lot.ID,
		Amount:    intent.Amount,
		BasePrice: lot.BasePrice,
	})
	if assessment.Fraudulent {
		e.recordFraud(ctx, candidate, assessment.Score)
		return nil, nil, types.NewFraudRejected(assessment.Score)
	}

	transition, err := arbitration.Decide(arbitration.NewState(lot, prior), candidate)
	if err != nil {
		return nil, nil, err
	}

	err = e.bids.AcceptBid(ctx, transition.Expected, transition.Accept)
	if errors.Is(err, storage.ErrConflict) {
		return nil, nil, retry.Retryable(err)
	}
	if err != nil {
		return nil, nil, types.NewPersistenceError("commit bid", err)
	}

	return transition.Accept, stageNotifications(lot, transition), nil
}

// recordFraud persists the rejected bid for audit. A failed write does not change the outcome.
func (e *Engine) recordFraud(ctx context.Context, candidate *types.Bid, score int) {
	rejected := arbitration.Reject(candidate, types.FraudRejectionReason(score))

	err := e.bids.InsertBid(ctx, rejected)
	if err != nil {
		e.logger.Error("fraud-audit-write-failed",
			zap.String("bid-id", rejected.ID),
			zap.String("lot-id", rejected.LotID),
			zap.Error(err))
		return
	}

	e.logger.Warn("bid-rejected-fraud",
		zap.String("bid-id", rejected.ID),
		zap.String("lot-id", rejected.LotID),
		zap.String("bidder-id", rejected.BidderID),
		zap.Int("risk-score", score))
}

func stageNotifications(lot *types.Lot, t *arbitration.Transition) []staged {
	notes := []staged{{
		userID:  lot.OwnerID,
		kind:    types.NotificationKindBid,
		title:   OwnerTitle,
		message: fmt.Sprintf(ownerMsgFormat, types.FormatAmount(t.Accept.Amount)),
		lotID:   lot.ID,
	}}

	displaced := t.DisplacedBidderID()
	if displaced != "" && displaced != t.Accept.BidderID {
		notes = append(notes, staged{
			userID:  displaced,
			kind:    types.NotificationKindOutbid,
			title:   OutbidTitle,
			message: outbidMessage,
			lotID:   lot.ID,
		})
	}
	return notes
}

// ListLotBids returns every bid on a lot, newest first.
func (e *Engine) ListLotBids(ctx context.Context, lotID string) ([]*types.Bid, error) {
	if lotID == "" {
		return nil, types.NewInvalidRequest("Product ID is required")
	}
	_, err := e.lots.GetLot(ctx, lotID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, types.NewLotNotFound(lotID, err)
	}
	if err != nil {
		return nil, types.NewPersistenceError("get lot", err)
	}

	bids, err := e.bids.ListLotBids(ctx, lotID)
	if err != nil {
		return nil, types.NewPersistenceError("list lot bids", err)
	}
	return bids, nil
}

// ListBidderBids returns every bid placed by a bidder, newest first.
func (e *Engine) ListBidderBids(ctx context.Context, bidderID string) ([]*types.Bid, error) {
	if bidderID == "" {
		return nil, types.NewInvalidRequest("You must be logged in to view bids")
	}

	bids, err := e.bids.ListBidderBids(ctx, bidderID)
	if err != nil {
		return nil, types.NewPersistenceError("list bidder bids", err)
	}
	return bids, nil
}
