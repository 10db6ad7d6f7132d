package model

import "time"

// Notification is a transient inbound-message toast pushed to a client.
// It never reaches the database: created on an inbound message event,
// destroyed on dismissal or timeout.
type Notification struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Preview        string    `json:"preview"`
	UnreadHint     int       `json:"unread_hint"`
	IsGroup        bool      `json:"is_group"`
	CreatedAt      time.Time `json:"created_at"`
}
