package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// Notification list paging.
const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
)

// NotificationService reads and updates stored notifications.
type NotificationService interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// ReadSync is told when a user has read their notifications.
type ReadSync interface {
	MarkRead(userID string)
}

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	store  NotificationService
	sync   ReadSync
	logger *zap.Logger
}

// NewNotificationHandler creates a new notification handler. sync may be nil.
func NewNotificationHandler(store NotificationService, sync ReadSync, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, sync: sync, logger: logger}
}

// NotificationListResponse is the body of GET /api/users/{userID}/notifications.
type NotificationListResponse struct {
	Notifications []*types.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// MarkReadResponse is the body of POST /api/users/{userID}/notifications/read.
type MarkReadResponse struct {
	MarkedRead int `json:"marked_read"`
}

// HandleList handles GET /api/users/{userID}/notifications?limit=<n>.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := DefaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = min(n, MaxNotificationLimit)
	}

	list, err := h.store.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list-notifications-failed", zap.String("user-id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load notifications", h.logger)
		return
	}

	unread, err := h.store.CountUnread(r.Context(), userID)
	if err != nil {
		h.logger.Error("count-unread-failed", zap.String("user-id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load notifications", h.logger)
		return
	}

	if list == nil {
		list = []*types.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: list, UnreadCount: unread}, h.logger)
}

// HandleMarkRead handles POST /api/users/{userID}/notifications/read.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	n, err := h.store.MarkNotificationsRead(r.Context(), userID)
	if err != nil {
		h.logger.Error("mark-notifications-read-failed", zap.String("user-id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read", h.logger)
		return
	}

	if h.sync != nil {
		h.sync.MarkRead(userID)
	}

	writeJSON(w, http.StatusOK, MarkReadResponse{MarkedRead: n}, h.logger)
}
