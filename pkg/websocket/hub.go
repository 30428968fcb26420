// Package websocket pushes notifications to connected users and tracks
// each connection's unread count.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/harvestlink/bid-engine/internal/notify"
	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// Message types sent to clients.
const (
	MessageTypeUnread       = "unread"
	MessageTypeNotification = "notification"
)

// Defaults for client connections.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultSendBuffer   = 16

	maxReadBytes = 512
)

// Message is the envelope written to clients.
type Message struct {
	Type         string              `json:"type"`
	Notification *types.Notification `json:"notification,omitempty"`
	UnreadCount  int                 `json:"unread_count"`
}

// UnreadCounter seeds a new connection's unread count.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Config holds hub configuration.
type Config struct {
	Unread       UnreadCounter
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	Logger       *zap.Logger
}

// Hub accepts notification connections and fans notifications out to them.
type Hub struct {
	unread       UnreadCounter
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	logger       *zap.Logger
	upgrader     websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	conn      *websocket.Conn
	session   *notify.Session
	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
	start     time.Time
}

// NewHub creates a hub.
func NewHub(cfg *Config) (*Hub, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Unread == nil {
		return nil, fmt.Errorf("unread counter cannot be nil")
	}

	h := &Hub{
		unread:       cfg.Unread,
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBuffer,
		logger:       cfg.Logger,
		clients:      make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are browsers on other origins behind the API gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if h.pingInterval <= 0 {
		h.pingInterval = DefaultPingInterval
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = DefaultWriteTimeout
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = DefaultSendBuffer
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	return h, nil
}

// ServeHTTP upgrades GET /ws/notifications?user_id=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "missing required query parameter: user_id", http.StatusBadRequest)
		return
	}

	unread, err := h.unread.CountUnread(r.Context(), userID)
	if err != nil {
		h.logger.Warn("unread-count-failed", zap.String("user-id", userID), zap.Error(err))
		unread = 0
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.String("user-id", userID), zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		session: notify.NewSession(userID, unread),
		send:    make(chan Message, h.sendBuffer),
		done:    make(chan struct{}),
		start:   time.Now(),
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.enqueue(c, Message{Type: MessageTypeUnread, UnreadCount: c.session.Unread()})

	h.wg.Add(2)
	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	userID := c.session.UserID()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	ActiveConnections.Inc()

	h.logger.Info("websocket-client-connected",
		zap.String("user-id", userID),
		zap.Int("unread-count", c.session.Unread()))
	return true
}

func (h *Hub) unregister(c *client) {
	c.closeOnce.Do(func() {
		userID := c.session.UserID()

		h.mu.Lock()
		delete(h.clients[userID], c)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()

		ActiveConnections.Dec()
		ConnectionDuration.Observe(time.Since(c.start).Seconds())
		h.logger.Info("websocket-client-disconnected", zap.String("user-id", userID))
	})
}

// enqueue never blocks; a client that falls behind loses the message.
func (h *Hub) enqueue(c *client, msg Message) {
	select {
	case c.send <- msg:
		MessagesSentTotal.WithLabelValues(msg.Type).Inc()
	default:
		MessagesDroppedTotal.WithLabelValues("send_buffer_full").Inc()
		h.logger.Warn("websocket-send-buffer-full",
			zap.String("user-id", c.session.UserID()),
			zap.String("type", msg.Type))
	}
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	pongWait := 2 * h.pingInterval
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket-read-error",
					zap.String("user-id", c.session.UserID()),
					zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			deadline := time.Now().Add(h.writeTimeout)
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
			return
		case <-c.done:
			return
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("websocket-marshal-failed", zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				h.logger.Debug("websocket-write-error",
					zap.String("user-id", c.session.UserID()),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout))
			if err != nil {
				h.logger.Debug("websocket-ping-error",
					zap.String("user-id", c.session.UserID()),
					zap.Error(err))
				return
			}
		}
	}
}

// Notify pushes n to every connection of its user. It never fails, so the hub
// can sit alongside other notification sinks.
func (h *Hub) Notify(_ context.Context, n types.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[n.UserID] {
		addressed, unread := c.session.Deliver(n)
		if !addressed {
			continue
		}
		note := n
		h.enqueue(c, Message{Type: MessageTypeNotification, Notification: &note, UnreadCount: unread})
	}
	return nil
}

// MarkRead resets the unread count of every connection of userID.
func (h *Hub) MarkRead(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		c.session.MarkAllRead()
		h.enqueue(c, Message{Type: MessageTypeUnread, UnreadCount: 0})
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects every client and waits for their loops to exit.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.logger.Info("closing-websocket-hub")
	h.cancel()
	h.wg.Wait()
	h.logger.Info("websocket-hub-closed")

	return nil
}
