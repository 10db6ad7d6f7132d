package ws

import (
	"time"

	"github.com/chasmos/internal/model"
)

type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventMessageRead     EventType = "message_read"
	EventMessageEdited   EventType = "message_edited"
	EventMessageDeleted  EventType = "message_deleted"
	EventTyping          EventType = "typing"
	EventUserOnline      EventType = "user_online"
	EventUserOffline     EventType = "user_offline"
	EventChatCreated     EventType = "chat_created"
	EventMessagePinned   EventType = "message_pinned"
	EventMessageUnpinned EventType = "message_unpinned"
	EventMemberAdded     EventType = "member_added"
	EventMemberRemoved   EventType = "member_removed"
	EventChatUpdated     EventType = "chat_updated"
	EventPollCreated     EventType = "poll_created"
	EventPollVote        EventType = "poll_vote"
	EventPollClosed      EventType = "poll_closed"
	EventNotification    EventType = "notification"
	EventError           EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content,omitempty"`

	// For document/image messages
	Kind     model.MessageKind `json:"kind,omitempty"`
	FileURL  string            `json:"file_url,omitempty"`
	FileName string            `json:"file_name,omitempty"`
	FileSize int64             `json:"file_size,omitempty"`

	// For edit/delete/pin
	MessageID string `json:"message_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// --- Typed payloads for hot-path (avoid map[string]any allocations) ---

// MessageEditedPayload is broadcast when a message is edited.
type MessageEditedPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"edited_at"`
}

// MessageDeletedPayload is broadcast when a message is deleted.
type MessageDeletedPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// PinPayload is broadcast when a message is pinned or unpinned.
type PinPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	PinnedBy       string `json:"pinned_by,omitempty"`
}

// TypingPayload is broadcast when a user is typing.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// MessageReadPayload is broadcast when messages are read.
type MessageReadPayload struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	MessageIDs     []string `json:"message_ids,omitempty"`
}

// UserStatusPayload is broadcast for online/offline status.
type UserStatusPayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// MemberPayload is broadcast when a member is added to or removed from a group.
type MemberPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
	IsLeave        bool   `json:"is_leave,omitempty"`
}

// PollVotePayload is broadcast when a vote is cast or withdrawn.
type PollVotePayload struct {
	ConversationID string `json:"conversation_id"`
	PollID         string `json:"poll_id"`
	OptionID       string `json:"option_id"`
	UserID         string `json:"user_id"`
	Removed        bool   `json:"removed,omitempty"`
}

// PollClosedPayload is broadcast when the creator or an admin closes a poll.
type PollClosedPayload struct {
	ConversationID string `json:"conversation_id"`
	PollID         string `json:"poll_id"`
	ClosedBy       string `json:"closed_by"`
}
