package types

import "time"

// NotificationKind classifies a notification for the delivery side.
type NotificationKind string

const (
	NotificationKindBid    NotificationKind = "bid"
	NotificationKindOutbid NotificationKind = "outbid"
)

// Notification is a message addressed to a single user about a lot.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Kind        NotificationKind `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ReferenceID string           `json:"reference_id,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
