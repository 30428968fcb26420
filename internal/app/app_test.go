package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/harvestlink/bid-engine/pkg/types"
	ws "github.com/harvestlink/bid-engine/pkg/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:              "debug",
		HTTPPort:              "0",
		BidMinIncrement:       decimal.RequireFromString("0.50"),
		BidRetryMaxAttempts:   3,
		BidRetryBaseDelay:     time.Millisecond,
		FraudThreshold:        50,
		FraudHistoryLimit:     10,
		FraudLotLookbackLimit: 5,
		ProfileCacheTTL:       time.Minute,
		NotifyWorkers:         2,
		NotifyTimeout:         time.Second,
		WSPingInterval:        time.Second,
		StorageMode:           config.StorageModeMemory,
	}
}

func testSeed() *Seed {
	return &Seed{
		Lots: []*types.Lot{
			{ID: "lot-1", OwnerID: "farmer-1", Title: "Heirloom tomatoes", BasePrice: decimal.RequireFromString("2.50"), Quantity: 20},
		},
		Profiles: map[string]time.Time{
			"buyer-1": time.Now().Add(-90 * 24 * time.Hour),
			"buyer-2": time.Now().Add(-90 * 24 * time.Hour),
		},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	a, err := New(testConfig(), zaptest.NewLogger(t), &Options{Seed: testSeed()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNew_MemoryModeSeeded(t *testing.T) {
	a := newTestApp(t)

	lot, err := a.Storage().GetLot(context.Background(), "lot-1")
	require.NoError(t, err)
	assert.Equal(t, "farmer-1", lot.OwnerID)

	createdAt, err := a.Storage().GetAccountCreatedAt(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.False(t, createdAt.IsZero())
}

func TestNew_PostgresUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.StorageMode = config.StorageModePostgres
	cfg.PostgresHost = "127.0.0.1"
	cfg.PostgresPort = "1"
	cfg.PostgresUser = "harvest"
	cfg.PostgresDB = "harvest_bids"
	cfg.PostgresSSL = "disable"

	_, err := New(cfg, zap.NewNop(), nil)
	assert.ErrorContains(t, err, "setup storage")
}

func TestApp_PlaceBidNotifiesOwnerAndOutbidBidder(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Engine().PlaceBid(ctx, engine.Request{LotID: "lot-1", BidderID: "buyer-1", Amount: decimal.RequireFromString("3.00")})
	require.NoError(t, err)
	_, err = a.Engine().PlaceBid(ctx, engine.Request{LotID: "lot-1", BidderID: "buyer-2", Amount: decimal.RequireFromString("3.50")})
	require.NoError(t, err)
	a.WaitForNotifications()

	owner, err := a.Storage().ListNotifications(ctx, "farmer-1", 10)
	require.NoError(t, err)
	require.Len(t, owner, 2)
	assert.Equal(t, "A new bid of $3.50 was placed on your product", owner[0].Message)

	outbid, err := a.Storage().ListNotifications(ctx, "buyer-1", 10)
	require.NoError(t, err)
	require.Len(t, outbid, 1)
	assert.Equal(t, types.NotificationKindOutbid, outbid[0].Kind)
	assert.Equal(t, "lot-1", outbid[0].ReferenceID)
}

func readPush(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestApp_EndToEnd(t *testing.T) {
	a := newTestApp(t)
	a.healthChecker.SetReady(true)

	srv := httptest.NewServer(a.httpServer.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?user_id=farmer-1"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = wsResp.Body.Close()
	defer conn.Close()

	assert.Equal(t, 0, readPush(t, conn).UnreadCount)

	resp, err = http.Post(srv.URL+"/api/lots/lot-1/bids", "application/json",
		strings.NewReader(`{"bidder_id":"buyer-1","amount":"2.80"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	push := readPush(t, conn)
	assert.Equal(t, ws.MessageTypeNotification, push.Type)
	require.NotNil(t, push.Notification)
	assert.Equal(t, engine.OwnerTitle, push.Notification.Title)
	assert.Equal(t, 1, push.UnreadCount)

	resp, err = http.Post(srv.URL+"/api/users/farmer-1/notifications/read", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reset := readPush(t, conn)
	assert.Equal(t, ws.MessageTypeUnread, reset.Type)
	assert.Equal(t, 0, reset.UnreadCount)
}

func TestApp_ShutdownNotReady(t *testing.T) {
	a, err := New(testConfig(), zap.NewNop(), nil)
	require.NoError(t, err)
	a.healthChecker.SetReady(true)

	require.NoError(t, a.Shutdown())

	w := httptest.NewRecorder()
	a.httpServer.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
