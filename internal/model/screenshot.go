package model

import "time"

// Screenshot — запись о перехваченном скриншоте чата и связанном системном сообщении.
type Screenshot struct {
	ID              string      `json:"id"`
	ConversationID  string      `json:"conversation_id"`
	CapturedBy      string      `json:"captured_by"`
	ImageURL        string      `json:"image_url"`
	FileName        string      `json:"file_name"`
	FileSize        int64       `json:"file_size"`
	MimeType        string      `json:"mime_type"`
	Width           *int        `json:"width,omitempty"`
	Height          *int        `json:"height,omitempty"`
	SystemMessageID string      `json:"system_message_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Capturer        *UserPublic `json:"capturer,omitempty"`
}
