package fraud

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults for scoring inputs.
const (
	DefaultThreshold        = 50
	DefaultHistoryLimit     = 10
	DefaultLotLookbackLimit = 5
)

const (
	rapidBiddingCount  = 3
	newAccountWindow   = 24 * time.Hour
	youngAccountWindow = 7 * 24 * time.Hour

	rejectionsHighPoints      = 30
	rejectionsLowPoints       = 10
	ratioHighPoints           = 30
	ratioLowPoints            = 15
	rapidBiddingPoints        = 15
	newAccountLargeBidPoints  = 40
	youngAccountHugeBidPoints = 20
)

var (
	ratioHigh           = decimal.NewFromInt(3)
	ratioLow            = decimal.NewFromInt(2)
	newAccountLargeBid  = decimal.NewFromInt(500)
	youngAccountHugeBid = decimal.NewFromInt(1000)
)

// BidHistory provides a bidder's recent bids, newest first.
type BidHistory interface {
	GetRecentBids(ctx context.Context, bidderID string, limit int) ([]*types.Bid, error)
	GetRecentBidsOnLot(ctx context.Context, bidderID string, lotID string, limit int) ([]*types.Bid, error)
}

// Profiles provides bidder account metadata.
type Profiles interface {
	GetAccountCreatedAt(ctx context.Context, bidderID string) (time.Time, error)
}

// Factors is the per-signal breakdown of a risk score.
type Factors struct {
	RecentRejections   int             `json:"recent_rejections"`
	RejectionPoints    int             `json:"rejection_points"`
	PriceRatio         decimal.Decimal `json:"price_ratio"`
	PriceRatioPoints   int             `json:"price_ratio_points"`
	RecentLotBids      int             `json:"recent_lot_bids"`
	RapidBiddingPoints int             `json:"rapid_bidding_points"`
	AccountAge         time.Duration   `json:"account_age"`
	NewAccountPoints   int             `json:"new_account_points"`
}

// Assessment is the result of screening one bid attempt.
type Assessment struct {
	Score      int
	Fraudulent bool
	Factors    Factors
	// FailedOpen is set when a data source was unavailable and the bid was let through unscored.
	FailedOpen bool
	Err        error
}

// Signals are the raw inputs to the score. Score is a pure function of them.
type Signals struct {
	Amount           decimal.Decimal
	BasePrice        decimal.Decimal
	History          []*types.Bid
	LotHistory       []*types.Bid
	AccountCreatedAt time.Time
	Now              time.Time
	// RapidBidWindow bounds LotHistory by age; zero counts every bid in LotHistory.
	RapidBidWindow   time.Duration
}

// Request identifies the bid being screened.
type Request struct {
	BidderID  string
	LotID     string
	Amount    decimal.Decimal
	BasePrice decimal.Decimal
}

// Config holds scorer configuration.
type Config struct {
	History          BidHistory
	Profiles         Profiles
	Clock            clock.Clock
	Logger           *zap.Logger
	Threshold        int
	HistoryLimit     int
	LotLookbackLimit int
	RapidBidWindow   time.Duration
}

// Scorer computes fraud risk for incoming bids.
type Scorer struct {
	history          BidHistory
	profiles         Profiles
	clock            clock.Clock
	logger           *zap.Logger
	threshold        int
	historyLimit     int
	lotLookbackLimit int
	rapidBidWindow   time.Duration
}

// New creates a scorer, applying defaults for zero values.
func New(cfg *Config) (*Scorer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("bid history cannot be nil")
	}
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("profiles cannot be nil")
	}

	s := &Scorer{
		history:          cfg.History,
		profiles:         cfg.Profiles,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		threshold:        cfg.Threshold,
		historyLimit:     cfg.HistoryLimit,
		lotLookbackLimit: cfg.LotLookbackLimit,
		rapidBidWindow:   cfg.RapidBidWindow,
	}
	if s.clock == nil {
		s.clock = clock.NewClock()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.historyLimit <= 0 {
		s.historyLimit = DefaultHistoryLimit
	}
	if s.lotLookbackLimit <= 0 {
		s.lotLookbackLimit = DefaultLotLookbackLimit
	}

	return s, nil
}

// Assess gathers the bidder's signals and scores the bid.
// Any data-source failure fails open: score 0, not fraudulent.
func (s *Scorer) Assess(ctx context.Context, req Request) *Assessment {
	signals, err := s.gather(ctx, req)
	if err != nil {
		FailOpenTotal.Inc()
		s.logger.Warn("fraud-check-failed-open",
			zap.String("bidder-id", req.BidderID),
			zap.String("lot-id", req.LotID),
			zap.Error(err))
		return &Assessment{FailedOpen: true, Err: err}
	}

	factors, score := Score(signals)
	assessment := &Assessment{
		Score:      score,
		Fraudulent: score >= s.threshold,
		Factors:    factors,
	}

	RiskScore.Observe(float64(score))
	if assessment.Fraudulent {
		FraudulentTotal.Inc()
	}

	s.logger.Info("fraud-check-completed",
		zap.String("bidder-id", req.BidderID),
		zap.String("lot-id", req.LotID),
		zap.Int("risk-score", score),
		zap.Bool("fraudulent", assessment.Fraudulent),
		zap.Int("recent-rejections", factors.RecentRejections),
		zap.Int("recent-lot-bids", factors.RecentLotBids))

	return assessment
}

func (s *Scorer) gather(ctx context.Context, req Request) (Signals, error) {
	history, err := s.history.GetRecentBids(ctx, req.BidderID, s.historyLimit)
	if err != nil {
		return Signals{}, fmt.Errorf("get recent bids: %w", err)
	}

	lotHistory, err := s.history.GetRecentBidsOnLot(ctx, req.BidderID, req.LotID, s.lotLookbackLimit)
	if err != nil {
		return Signals{}, fmt.Errorf("get recent bids on lot: %w", err)
	}

	createdAt, err := s.profiles.GetAccountCreatedAt(ctx, req.BidderID)
	if err != nil {
		return Signals{}, fmt.Errorf("get account created at: %w", err)
	}

	return Signals{
		Amount:           req.Amount,
		BasePrice:        req.BasePrice,
		History:          history,
		LotHistory:       lotHistory,
		AccountCreatedAt: createdAt,
		Now:              s.clock.Now(),
		RapidBidWindow:   s.rapidBidWindow,
	}, nil
}

// Score sums the independently triggered risk factors.
func Score(sig Signals) (Factors, int) {
	var f Factors

	for _, bid := range sig.History {
		if bid.Status == types.BidStatusRejected {
			f.RecentRejections++
		}
	}
	switch {
	case f.RecentRejections >= 3:
		f.RejectionPoints = rejectionsHighPoints
	case f.RecentRejections >= 1:
		f.RejectionPoints = rejectionsLowPoints
	}

	// A zero base price has no meaningful ratio.
	if sig.BasePrice.IsPositive() {
		f.PriceRatio = sig.Amount.Div(sig.BasePrice)
		switch {
		case f.PriceRatio.GreaterThan(ratioHigh):
			f.PriceRatioPoints = ratioHighPoints
		case f.PriceRatio.GreaterThan(ratioLow):
			f.PriceRatioPoints = ratioLowPoints
		}
	}

	for _, bid := range sig.LotHistory {
		if sig.RapidBidWindow > 0 && sig.Now.Sub(bid.CreatedAt) > sig.RapidBidWindow {
			continue
		}
		f.RecentLotBids++
	}
	if f.RecentLotBids > rapidBiddingCount {
		f.RapidBiddingPoints = rapidBiddingPoints
	}

	f.AccountAge = sig.Now.Sub(sig.AccountCreatedAt)
	if f.AccountAge < newAccountWindow && sig.Amount.GreaterThan(newAccountLargeBid) {
		f.NewAccountPoints += newAccountLargeBidPoints
	}
	if f.AccountAge < youngAccountWindow && sig.Amount.GreaterThan(youngAccountHugeBid) {
		f.NewAccountPoints += youngAccountHugeBidPoints
	}

	score := f.RejectionPoints + f.PriceRatioPoints + f.RapidBiddingPoints + f.NewAccountPoints
	return f, score
}
