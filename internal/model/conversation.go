package model

import "time"

type ConversationKind string

const (
	ConversationDirect    ConversationKind = "direct"
	ConversationGroup     ConversationKind = "group"
	ConversationCommunity ConversationKind = "community"
	ConversationDocument  ConversationKind = "document"
)

// IsGroupLike reports whether the conversation has shared moderation
// (polls and admin-only operations are allowed).
func (k ConversationKind) IsGroupLike() bool {
	return k == ConversationGroup || k == ConversationCommunity
}

type Conversation struct {
	ID          string           `json:"id"`
	Kind        ConversationKind `json:"kind"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	AvatarURL   string           `json:"avatar_url"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	Archived    bool             `json:"archived"`
	ArchivedBy  *string          `json:"archived_by,omitempty"`
	ArchivedAt  *time.Time       `json:"archived_at,omitempty"`
}

type ConversationMember struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
	LastReadAt     time.Time `json:"last_read_at"`

	// Denormalized from users when listing members.
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsOnline  bool   `json:"is_online,omitempty"`
}

// ConversationView is what the directory endpoint returns: the conversation
// enriched with members, last-message preview and the caller's unread count.
type ConversationView struct {
	Conversation  Conversation `json:"conversation"`
	LastMessage   *Message     `json:"last_message,omitempty"`
	Members       []UserPublic `json:"members"`
	UnreadCount   int          `json:"unread_count"`
	ArchivedForMe bool         `json:"archived_for_me"`
}
