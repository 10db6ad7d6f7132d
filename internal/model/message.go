package model

import "time"

type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageDocument MessageKind = "document"
	MessageImage    MessageKind = "image"
	MessagePoll     MessageKind = "poll"
	MessageSystem   MessageKind = "system"
)

type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// Attachment describes a stored document or image referenced by a message.
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message content is a tagged union on Kind: Content for text and system
// messages, Attachment for document/image, PollID for poll messages.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Kind           MessageKind   `json:"kind"`
	Content        string        `json:"content,omitempty"`
	Attachment     *Attachment   `json:"attachment,omitempty"`
	PollID         string        `json:"poll_id,omitempty"`
	Status         MessageStatus `json:"status"`
	Pinned         bool          `json:"pinned,omitempty"`
	IsDeleted      bool          `json:"is_deleted"`
	CreatedAt      time.Time     `json:"created_at"`
	Sender         *UserPublic   `json:"sender,omitempty"`
}

// Preview returns the text shown in a conversation list entry.
func (m *Message) Preview() string {
	switch m.Kind {
	case MessageText, MessageSystem:
		return m.Content
	case MessagePoll:
		return "📊 Poll"
	case MessageImage:
		return "📷 Photo"
	case MessageDocument:
		if m.Attachment != nil && m.Attachment.FileName != "" {
			return "📄 " + m.Attachment.FileName
		}
		return "📄 Document"
	}
	return m.Content
}

type PinnedMessage struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	PinnedBy       string    `json:"pinned_by"`
	PinnedAt       time.Time `json:"pinned_at"`
	Message        *Message  `json:"message,omitempty"`
}
