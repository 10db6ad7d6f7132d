package client

import (
	"sort"
	"strings"
	"sync"

	"github.com/chasmos/internal/model"
)

// MessageStore keeps per-conversation message sequences in creation-time
// order regardless of network arrival order.
type MessageStore struct {
	mu       sync.Mutex
	messages map[string][]*model.Message
	dir      *Directory
}

func NewMessageStore(dir *Directory) *MessageStore {
	return &MessageStore{
		messages: make(map[string][]*model.Message),
		dir:      dir,
	}
}

// Append inserts the message keeping ascending creation-time order and
// updates the owning conversation's preview.
func (s *MessageStore) Append(conversationID string, m *model.Message) {
	s.mu.Lock()
	seq := s.messages[conversationID]
	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].CreatedAt.After(m.CreatedAt)
	})
	seq = append(seq, nil)
	copy(seq[i+1:], seq[i:])
	seq[i] = m
	s.messages[conversationID] = seq
	s.mu.Unlock()

	if s.dir != nil && m.Kind != model.MessageSystem {
		s.dir.Touch(conversationID, m)
	}
}

// List returns the conversation's messages in creation-time order.
func (s *MessageStore) List(conversationID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.messages[conversationID]
	out := make([]*model.Message, len(seq))
	copy(out, seq)
	return out
}

// Remove drops a message locally, reflecting a remote delete.
func (s *MessageStore) Remove(conversationID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.messages[conversationID]
	for i, m := range seq {
		if m.ID == messageID {
			s.messages[conversationID] = append(seq[:i], seq[i+1:]...)
			return
		}
	}
}

// ToggleRead flips the read status of every message in the conversation.
func (s *MessageStore) ToggleRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[conversationID] {
		if m.Status == model.MessageStatusRead {
			m.Status = model.MessageStatusSent
		} else {
			m.Status = model.MessageStatusRead
		}
	}
}

// TogglePin flips the pinned flag. Unknown ids are a no-op.
func (s *MessageStore) TogglePin(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range s.messages {
		for _, m := range seq {
			if m.ID == messageID {
				m.Pinned = !m.Pinned
				return
			}
		}
	}
}

// Search matches case-insensitively over text content only. An empty term
// returns the full sequence unchanged.
func (s *MessageStore) Search(conversationID, term string) []*model.Message {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.List(conversationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.messages[conversationID] {
		if m.Kind != model.MessageText {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), term) {
			out = append(out, m)
		}
	}
	return out
}
