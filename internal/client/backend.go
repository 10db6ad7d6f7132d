package client

import (
	"context"
	"io"

	"github.com/chasmos/internal/model"
)

// Backend is the server the engine mirrors state to. The engine works the
// same over REST or an in-process fake; only the Composer and Notifier
// perform backend calls.
type Backend interface {
	SendMessage(ctx context.Context, m *model.Message) error
	UploadDocument(ctx context.Context, fileName string, r io.Reader) (*model.Attachment, error)
	MarkRead(ctx context.Context, conversationID string) error
}
