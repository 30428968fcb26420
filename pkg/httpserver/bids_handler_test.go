package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/internal/fraud"
	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/internal/testutil"
	"github.com/harvestlink/bid-engine/pkg/healthprobe"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, store *storage.MemoryStorage) *engine.Engine {
	t.Helper()

	testutil.SeedMarketplace(store, time.Now())

	scorer, err := fraud.New(&fraud.Config{History: store, Profiles: store, Logger: zap.NewNop()})
	require.NoError(t, err)

	e, err := engine.New(&engine.Config{Lots: store, Bids: store, Scorer: scorer, Logger: zap.NewNop()})
	require.NoError(t, err)
	return e
}

func newBidServer(t *testing.T) (http.Handler, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage(zap.NewNop())
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Bids:          newTestEngine(t, store),
		Notifications: store,
	})
	return server.Handler(), store
}

func postBid(t *testing.T, h http.Handler, lotID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/lots/"+lotID+"/bids", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandlePlaceBid_Accepted(t *testing.T) {
	h, store := newBidServer(t)

	w := postBid(t, h, "lot-1", `{"bidder_id":"buyer-1","amount":"2.80"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp BidResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Bid)
	assert.Equal(t, types.BidStatusAccepted, resp.Bid.Status)
	assert.True(t, resp.Bid.Amount.Equal(decimal.RequireFromString("2.80")))

	highest, err := store.GetHighestAccepted(context.Background(), "lot-1")
	require.NoError(t, err)
	assert.Equal(t, resp.Bid.ID, highest.ID)
}

func TestHandlePlaceBid_NumericAmount(t *testing.T) {
	h, _ := newBidServer(t)

	w := postBid(t, h, "lot-1", `{"bidder_id":"buyer-1","amount":3.1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandlePlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		lotID      string
		body       string
		wantStatus int
		wantCode   types.ErrorKind
	}{
		{"malformed_json", "lot-1", `{"bidder_id":`, http.StatusBadRequest, types.KindInvalidRequest},
		{"missing_bidder", "lot-1", `{"amount":"3.00"}`, http.StatusBadRequest, types.KindInvalidRequest},
		{"zero_amount", "lot-1", `{"bidder_id":"buyer-1","amount":"0"}`, http.StatusBadRequest, types.KindInvalidAmount},
		{"below_increment", "lot-1", `{"bidder_id":"buyer-1","amount":"0.25"}`, http.StatusBadRequest, types.KindBelowMinimumIncrement},
		{"unknown_lot", "lot-404", `{"bidder_id":"buyer-1","amount":"3.00"}`, http.StatusNotFound, types.KindLotNotFound},
		{"sold_out", "sold-out", `{"bidder_id":"buyer-1","amount":"3.00"}`, http.StatusConflict, types.KindProductUnavailable},
		{"at_base_price", "lot-1", `{"bidder_id":"buyer-1","amount":"2.50"}`, http.StatusConflict, types.KindBidNotHighEnough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newBidServer(t)

			w := postBid(t, h, tt.lotID, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, string(tt.wantCode), resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlePlaceBid_Outbid(t *testing.T) {
	h, _ := newBidServer(t)

	require.Equal(t, http.StatusCreated, postBid(t, h, "lot-1", `{"bidder_id":"buyer-1","amount":"3.00"}`).Code)

	w := postBid(t, h, "lot-1", `{"bidder_id":"buyer-2","amount":"3.00"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Your bid must be higher than the current highest bid of $3.00", decodeError(t, w).Error)

	require.Equal(t, http.StatusCreated, postBid(t, h, "lot-1", `{"bidder_id":"buyer-2","amount":"3.50"}`).Code)
}

func TestHandleListLotBids(t *testing.T) {
	h, _ := newBidServer(t)
	postBid(t, h, "lot-1", `{"bidder_id":"buyer-1","amount":"3.00"}`)
	postBid(t, h, "lot-1", `{"bidder_id":"buyer-2","amount":"3.50"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots/lot-1/bids", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp BidListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Bids, 2)
	assert.Equal(t, "buyer-2", resp.Bids[0].BidderID)
	assert.Equal(t, types.BidStatusAccepted, resp.Bids[0].Status)
	assert.Equal(t, types.BidStatusOutbid, resp.Bids[1].Status)
}

func TestHandleListLotBids_UnknownLot(t *testing.T) {
	h, _ := newBidServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lots/lot-404/bids", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListBidderBids_Empty(t *testing.T) {
	h, _ := newBidServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bidders/buyer-1/bids", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bids":[]}`, w.Body.String())
}

type failingBids struct{ err error }

func (f failingBids) PlaceBid(context.Context, engine.Request) (*types.Bid, error) { return nil, f.err }

func (f failingBids) ListLotBids(context.Context, string) ([]*types.Bid, error) { return nil, f.err }

func (f failingBids) ListBidderBids(context.Context, string) ([]*types.Bid, error) { return nil, f.err }

func TestWriteBidError_HidesInternalDetail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   types.ErrorKind
	}{
		{"fraud", types.NewFraudRejected(70), http.StatusForbidden, types.KindFraudRejected},
		{"exhausted", types.NewConcurrencyExhausted(storage.ErrConflict), http.StatusConflict, types.KindConcurrencyExhausted},
		{"persistence", types.NewPersistenceError("commit bid", errors.New("pq: connection reset")), http.StatusInternalServerError, types.KindPersistence},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, types.KindPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := New(&Config{Logger: zap.NewNop(), HealthChecker: healthprobe.New(), Bids: failingBids{err: tt.err}})

			w := postBid(t, server.Handler(), "lot-1", `{"bidder_id":"buyer-1","amount":"3.00"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, string(tt.wantCode), resp.Code)
			assert.NotContains(t, resp.Error, "pq:")
			assert.NotContains(t, resp.Error, "boom")
		})
	}
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForKind(types.KindInvalidRequest))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(types.KindInvalidAmount))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(types.KindBelowMinimumIncrement))
	assert.Equal(t, http.StatusNotFound, StatusForKind(types.KindLotNotFound))
	assert.Equal(t, http.StatusConflict, StatusForKind(types.KindProductUnavailable))
	assert.Equal(t, http.StatusForbidden, StatusForKind(types.KindFraudRejected))
	assert.Equal(t, http.StatusConflict, StatusForKind(types.KindBidNotHighEnough))
	assert.Equal(t, http.StatusConflict, StatusForKind(types.KindConcurrencyExhausted))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(types.KindPersistence))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(""))
}
