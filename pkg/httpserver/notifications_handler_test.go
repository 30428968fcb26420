package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/pkg/healthprobe"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSync struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingSync) MarkRead(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func newNotificationServer(t *testing.T, n int) (http.Handler, *storage.MemoryStorage, *recordingSync) {
	t.Helper()

	store := storage.NewMemoryStorage(zap.NewNop())
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.SaveNotification(context.Background(), &types.Notification{
			ID:        "n-" + string(rune('a'+i)),
			UserID:    "farmer-1",
			Kind:      types.NotificationKindBid,
			Title:     "New Bid Received",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rs := &recordingSync{}
	server := New(&Config{
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Notifications: store,
		ReadSync:      rs,
	})
	return server.Handler(), store, rs
}

func TestNotificationHandler_List(t *testing.T) {
	h, _, _ := newNotificationServer(t, 3)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/farmer-1/notifications?limit=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp NotificationListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Notifications, 2)
	assert.Equal(t, "n-c", resp.Notifications[0].ID, "newest first")
	assert.Equal(t, 3, resp.UnreadCount)
}

func TestNotificationHandler_ListEmpty(t *testing.T) {
	h, _, _ := newNotificationServer(t, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/buyer-1/notifications", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notifications":[],"unread_count":0}`, w.Body.String())
}

func TestNotificationHandler_BadLimit(t *testing.T) {
	h, _, _ := newNotificationServer(t, 0)

	for _, limit := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/farmer-1/notifications?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	h, store, rs := newNotificationServer(t, 2)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/users/farmer-1/notifications/read", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"marked_read":2}`, w.Body.String())

	unread, err := store.CountUnread(context.Background(), "farmer-1")
	require.NoError(t, err)
	assert.Zero(t, unread)
	assert.Equal(t, []string{"farmer-1"}, rs.users)
}
