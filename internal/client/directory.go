package client

import (
	"strings"
	"sync"

	"github.com/chasmos/internal/model"
)

// Directory keeps the conversation list in recency order and tracks which
// conversation is active. Filtering never re-sorts the list.
type Directory struct {
	mu       sync.Mutex
	entries  []*model.ConversationView
	activeID string

	searchOpen bool
	menuOpen   bool
}

func NewDirectory() *Directory {
	return &Directory{}
}

// Add puts a conversation at the head of the list. An existing entry with
// the same id is replaced in place.
func (d *Directory) Add(view *model.ConversationView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.entries {
		if e.Conversation.ID == view.Conversation.ID {
			d.entries[i] = view
			return
		}
	}
	d.entries = append([]*model.ConversationView{view}, d.entries...)
}

// List filters by kind (empty = any) and case-insensitive substring over
// the display name and last-message preview, preserving recency order.
func (d *Directory) List(kind model.ConversationKind, term string) []*model.ConversationView {
	d.mu.Lock()
	defer d.mu.Unlock()
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]*model.ConversationView, 0, len(d.entries))
	for _, e := range d.entries {
		if kind != "" && e.Conversation.Kind != kind {
			continue
		}
		if term != "" && !d.matches(e, term) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (d *Directory) matches(e *model.ConversationView, term string) bool {
	if strings.Contains(strings.ToLower(e.Conversation.Name), term) {
		return true
	}
	if e.LastMessage != nil && strings.Contains(strings.ToLower(e.LastMessage.Preview()), term) {
		return true
	}
	return false
}

// Select makes the conversation active, zeroes its unread counter and
// closes any open search or menu overlay. Unknown ids are a no-op.
func (d *Directory) Select(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.Conversation.ID == id {
			d.activeID = id
			e.UnreadCount = 0
			d.searchOpen = false
			d.menuOpen = false
			return
		}
	}
}

func (d *Directory) ActiveID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

func (d *Directory) Get(id string) *model.ConversationView {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.Conversation.ID == id {
			return e
		}
	}
	return nil
}

// Touch updates the preview for a new message and moves the conversation
// to the head of the list. A message older than the current preview is a
// late arrival: it stays where the sorted insert put it and must not
// rewind the preview or the recency order.
func (d *Directory) Touch(conversationID string, m *model.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.entries {
		if e.Conversation.ID != conversationID {
			continue
		}
		if e.LastMessage != nil && e.LastMessage.CreatedAt.After(m.CreatedAt) {
			return
		}
		e.LastMessage = m
		if i > 0 {
			copy(d.entries[1:i+1], d.entries[:i])
			d.entries[0] = e
		}
		return
	}
}

// IncrementUnread bumps the unread counter unless the conversation is active.
func (d *Directory) IncrementUnread(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conversationID == d.activeID {
		return
	}
	for _, e := range d.entries {
		if e.Conversation.ID == conversationID {
			e.UnreadCount++
			return
		}
	}
}

func (d *Directory) OpenSearch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchOpen = true
}

func (d *Directory) OpenMenu() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.menuOpen = true
}

func (d *Directory) CloseOverlays() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchOpen = false
	d.menuOpen = false
}

// OverlayOpen reports whether any search or menu overlay is showing.
func (d *Directory) OverlayOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searchOpen || d.menuOpen
}
