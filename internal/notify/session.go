package notify

import (
	"sync"

	"github.com/harvestlink/bid-engine/pkg/types"
)

// Session holds one user's live unread count for the lifetime of a connection.
type Session struct {
	userID string

	mu     sync.Mutex
	unread int
}

// NewSession starts a session with the unread count loaded from storage.
func NewSession(userID string, unread int) *Session {
	if unread < 0 {
		unread = 0
	}
	return &Session{userID: userID, unread: unread}
}

// UserID returns the user this session belongs to.
func (s *Session) UserID() string {
	return s.userID
}

// Deliver counts n if it is an unread notification for this user.
// It reports whether n was addressed to the session and the resulting unread count.
func (s *Session) Deliver(n types.Notification) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.UserID != s.userID {
		return false, s.unread
	}
	if !n.Read {
		s.unread++
	}
	return true, s.unread
}

// MarkAllRead resets the unread count.
func (s *Session) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = 0
}

// Unread returns the current unread count.
func (s *Session) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}
