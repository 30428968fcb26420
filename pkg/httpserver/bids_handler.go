package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxBidBodyBytes caps the size of a bid submission body.
const maxBidBodyBytes = 4 << 10

// BidService places and lists bids.
type BidService interface {
	PlaceBid(ctx context.Context, req engine.Request) (*types.Bid, error)
	ListLotBids(ctx context.Context, lotID string) ([]*types.Bid, error)
	ListBidderBids(ctx context.Context, bidderID string) ([]*types.Bid, error)
}

// BidHandler handles HTTP requests for bids.
type BidHandler struct {
	bids   BidService
	logger *zap.Logger
}

// NewBidHandler creates a new bid handler.
func NewBidHandler(bids BidService, logger *zap.Logger) *BidHandler {
	return &BidHandler{bids: bids, logger: logger}
}

// PlaceBidRequest is the body of POST /api/lots/{lotID}/bids.
type PlaceBidRequest struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// BidResponse wraps a single bid.
type BidResponse struct {
	Bid *types.Bid `json:"bid"`
}

// BidListResponse wraps a list of bids.
type BidListResponse struct {
	Bids []*types.Bid `json:"bids"`
}

// HandlePlaceBid handles POST /api/lots/{lotID}/bids.
func (h *BidHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	var body PlaceBidRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBidBodyBytes)).Decode(&body)
	if err != nil {
		h.logger.Debug("bid-request-decode-failed", zap.String("lot-id", lotID), zap.Error(err))
		writeBidError(w, types.NewInvalidRequest(types.ErrInvalidRequest.Message), h.logger)
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), engine.Request{
		LotID:    lotID,
		BidderID: body.BidderID,
		Amount:   body.Amount,
	})
	if err != nil {
		writeBidError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, BidResponse{Bid: bid}, h.logger)
}

// HandleListLotBids handles GET /api/lots/{lotID}/bids.
func (h *BidHandler) HandleListLotBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.bids.ListLotBids(r.Context(), chi.URLParam(r, "lotID"))
	if err != nil {
		writeBidError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, BidListResponse{Bids: nonNil(bids)}, h.logger)
}

// HandleListBidderBids handles GET /api/bidders/{bidderID}/bids.
func (h *BidHandler) HandleListBidderBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.bids.ListBidderBids(r.Context(), chi.URLParam(r, "bidderID"))
	if err != nil {
		writeBidError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, BidListResponse{Bids: nonNil(bids)}, h.logger)
}

func nonNil(bids []*types.Bid) []*types.Bid {
	if bids == nil {
		return []*types.Bid{}
	}
	return bids
}
