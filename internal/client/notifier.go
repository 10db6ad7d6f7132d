package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chasmos/internal/model"
)

// Notification is an inbound-message toast.
type Notification struct {
	ID             string
	ConversationID string
	SenderName     string
	SenderAvatar   string
	Preview        string
	UnreadHint     int
	IsGroup        bool
	CreatedAt      time.Time
}

// Navigator routes the UI when a toast is opened. Group toasts land on
// the group listing, direct ones on the conversation itself.
type Navigator interface {
	OpenConversation(conversationID string, isGroup bool)
}

type toastEntry struct {
	n      Notification
	handle TaskHandle
}

// Notifier stacks toasts in arrival order. Each entry carries its own
// auto-dismiss timer; dismissing one entry never touches the timers of
// the others.
type Notifier struct {
	mu           sync.Mutex
	sched        Scheduler
	store        *MessageStore
	backend      Backend
	nav          Navigator
	self         model.UserPublic
	dismissAfter time.Duration
	maxVisible   int
	entries      []*toastEntry
}

func NewNotifier(sched Scheduler, store *MessageStore, backend Backend, nav Navigator, self model.UserPublic, dismissAfter time.Duration, maxVisible int) *Notifier {
	if dismissAfter <= 0 {
		dismissAfter = 10 * time.Second
	}
	if maxVisible <= 0 {
		maxVisible = 3
	}
	return &Notifier{
		sched:        sched,
		store:        store,
		backend:      backend,
		nav:          nav,
		self:         self,
		dismissAfter: dismissAfter,
		maxVisible:   maxVisible,
	}
}

// Enqueue appends the toast and arms its auto-dismiss timer.
func (n *Notifier) Enqueue(toast Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := toast.ID
	entry := &toastEntry{n: toast}
	entry.handle = n.sched.After(n.dismissAfter, func() { n.Dismiss(id) })
	n.entries = append(n.entries, entry)
}

// Visible returns up to maxVisible toasts in arrival order.
func (n *Notifier) Visible() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	limit := len(n.entries)
	if limit > n.maxVisible {
		limit = n.maxVisible
	}
	out := make([]Notification, 0, limit)
	for _, e := range n.entries[:limit] {
		out = append(out, e.n)
	}
	return out
}

// Dismiss removes the toast and cancels its timer. Unknown ids are a no-op.
func (n *Notifier) Dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.entries {
		if e.n.ID == id {
			e.handle.Cancel()
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return
		}
	}
}

// Reply sends a text message to the toast's conversation without making
// it active, then dismisses the toast.
func (n *Notifier) Reply(ctx context.Context, id, text string) error {
	n.mu.Lock()
	var toast *Notification
	for _, e := range n.entries {
		if e.n.ID == id {
			t := e.n
			toast = &t
			break
		}
	}
	n.mu.Unlock()
	if toast == nil || text == "" {
		return nil
	}
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: toast.ConversationID,
		SenderID:       n.self.ID,
		Kind:           model.MessageText,
		Content:        text,
		Status:         model.MessageStatusRead,
		CreatedAt:      time.Now().UTC(),
		Sender:         &n.self,
	}
	n.store.Append(toast.ConversationID, m)
	if err := n.backend.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("notifier.Reply: %w", err)
	}
	n.Dismiss(id)
	return nil
}

// Open routes to the toast's conversation and dismisses it.
func (n *Notifier) Open(id string) {
	n.mu.Lock()
	var toast *Notification
	for _, e := range n.entries {
		if e.n.ID == id {
			t := e.n
			toast = &t
			break
		}
	}
	n.mu.Unlock()
	if toast == nil {
		return
	}
	if n.nav != nil {
		n.nav.OpenConversation(toast.ConversationID, toast.IsGroup)
	}
	n.Dismiss(id)
}

// Close cancels every pending timer and clears the stack.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.entries {
		e.handle.Cancel()
	}
	n.entries = nil
}
