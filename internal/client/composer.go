package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chasmos/internal/model"
)

type menuState int

const (
	menuIdle menuState = iota
	menuOpenState
)

// Composer builds outgoing messages for the active conversation and
// mirrors them to the backend.
type Composer struct {
	store   *MessageStore
	dir     *Directory
	backend Backend
	self    model.UserPublic

	menu menuState
}

func NewComposer(store *MessageStore, dir *Directory, backend Backend, self model.UserPublic) *Composer {
	return &Composer{store: store, dir: dir, backend: backend, self: self}
}

// Submit sends a text message. Blank input or no active conversation is
// a silent no-op.
func (c *Composer) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	conversationID := c.dir.ActiveID()
	if text == "" || conversationID == "" {
		return nil
	}
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       c.self.ID,
		Kind:           model.MessageText,
		Content:        text,
		Status:         model.MessageStatusRead,
		CreatedAt:      time.Now().UTC(),
		Sender:         &c.self,
	}
	c.store.Append(conversationID, m)
	if err := c.backend.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("composer.Submit: %w", err)
	}
	return nil
}

// Attach uploads a file and appends the resulting attachment message.
// Upload failure leaves the store untouched.
func (c *Composer) Attach(ctx context.Context, kind model.MessageKind, fileName string, r io.Reader) error {
	defer c.CloseMenu()
	if kind != model.MessageDocument && kind != model.MessageImage {
		return fmt.Errorf("composer.Attach: unsupported kind %q", kind)
	}
	conversationID := c.dir.ActiveID()
	if conversationID == "" {
		return nil
	}
	att, err := c.backend.UploadDocument(ctx, fileName, r)
	if err != nil {
		return fmt.Errorf("composer.Attach: %w", err)
	}
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       c.self.ID,
		Kind:           kind,
		Attachment:     att,
		Status:         model.MessageStatusRead,
		CreatedAt:      time.Now().UTC(),
		Sender:         &c.self,
	}
	c.store.Append(conversationID, m)
	if err := c.backend.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("composer.Attach: %w", err)
	}
	return nil
}

func (c *Composer) OpenMenu()  { c.menu = menuOpenState }
func (c *Composer) CloseMenu() { c.menu = menuIdle }

func (c *Composer) MenuOpen() bool { return c.menu == menuOpenState }
