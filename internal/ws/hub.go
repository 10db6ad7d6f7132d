package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
)

// PushNotifier отправляет пуш-уведомления. Если nil — пуши не отправляются.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	userRepo   *repository.UserRepository
	pinnedRepo *repository.PinnedRepository
	blockRepo  *repository.BlockRepository
	pushClient PushNotifier
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	pinnedRepo *repository.PinnedRepository,
	blockRepo *repository.BlockRepository,
	maxConns int,
	pushClient PushNotifier,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
		pinnedRepo: pinnedRepo,
		blockRepo:  blockRepo,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.userRepo.SetOnline(ctx, c.userID, true); err != nil {
		logger.Errorf("ws set online user=%s: %v", c.userID, err)
	}
	h.broadcastUserStatus(c.userID, true)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.userID, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.userID, err)
		}
		h.broadcastUserStatus(c.userID, false)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	case EventMessageRead:
		h.handleMessageRead(ctx, c, msg)
	case EventMessageEdited:
		h.handleEditMessage(ctx, c, msg)
	case EventMessageDeleted:
		h.handleDeleteMessage(ctx, c, msg)
	case EventMessagePinned:
		h.handlePinMessage(ctx, c, msg)
	case EventMessageUnpinned:
		h.handleUnpinMessage(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) isMember(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := h.convRepo.GetMember(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	content := strings.TrimSpace(msg.Content)
	if msg.ConversationID == "" || (content == "" && msg.FileURL == "") {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	isMember, err := h.isMember(ctx, msg.ConversationID, c.userID)
	if err != nil {
		logger.Errorf("ws check membership conv=%s user=%s: %v", msg.ConversationID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
		return
	}
	if !isMember {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a member"})
		return
	}

	conv, err := h.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation not found"})
		return
	}
	// Личный диалог с блокировкой в любую сторону закрыт для отправки.
	if conv.Kind == model.ConversationDirect {
		if blocked, err := h.directBlocked(ctx, conv.ID, c.userID); err == nil && blocked {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation is blocked"})
			return
		}
	}

	kind := model.MessageText
	if msg.Kind == model.MessageDocument || msg.Kind == model.MessageImage {
		kind = msg.Kind
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: msg.ConversationID,
		SenderID:       c.userID,
		Kind:           kind,
		Content:        content,
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if msg.FileURL != "" {
		// Нормализация имени файла: "+" часто приходит вместо пробела (URL-кодирование).
		fileName := strings.TrimSpace(strings.ReplaceAll(msg.FileName, "+", " "))
		m.Attachment = &model.Attachment{URL: msg.FileURL, FileName: fileName, FileSize: msg.FileSize}
		if kind == model.MessageText {
			m.Kind = model.MessageDocument
		}
	}

	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("ws save message conv=%s user=%s: %v", msg.ConversationID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	sender, err := h.userRepo.GetByID(ctx, c.userID)
	if err != nil {
		logger.Errorf("ws get sender user=%s: %v", c.userID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	h.FanOutMessage(ctx, conv, m)
}

// FanOutMessage рассылает сообщение участникам: событие new_message всем,
// тост notification и пуш — получателям кроме отправителя.
// Системные сообщения тостов и пушей не порождают.
func (h *Hub) FanOutMessage(ctx context.Context, conv *model.Conversation, m *model.Message) {
	memberIDs, err := h.convRepo.MemberIDs(ctx, conv.ID)
	if err != nil {
		logger.Errorf("ws get members conv=%s: %v", conv.ID, err)
		return
	}

	out := OutgoingMessage{Type: EventNewMessage, Payload: m}
	for _, uid := range memberIDs {
		h.sendToUser(uid, out)
	}
	if m.Kind == model.MessageSystem {
		return
	}

	senderName := ""
	senderAvatar := ""
	if m.Sender != nil {
		senderName = m.Sender.Username
		senderAvatar = m.Sender.AvatarURL
	}
	title := senderName
	if conv.Kind.IsGroupLike() && conv.Name != "" {
		title = conv.Name
	}
	preview := m.Preview()
	if len(preview) > 120 {
		preview = preview[:117] + "..."
	}

	for _, uid := range memberIDs {
		if uid == m.SenderID {
			continue
		}
		toast := model.Notification{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderName:     senderName,
			SenderAvatar:   senderAvatar,
			Preview:        preview,
			IsGroup:        conv.Kind.IsGroupLike(),
			CreatedAt:      m.CreatedAt,
		}
		if n, err := h.convRepo.UnreadCount(ctx, conv.ID, uid); err == nil {
			toast.UnreadHint = n
		}
		h.sendToUser(uid, OutgoingMessage{Type: EventNotification, Payload: toast})

		// Пуш только оффлайн-получателям: онлайн уже получил тост по WS.
		if h.pushClient != nil && !h.IsOnline(uid) {
			uid := uid
			data := map[string]string{"conversation_id": conv.ID, "message_id": m.ID}
			go h.pushClient.Notify(context.Background(), uid, title, preview, data)
		}
	}
}

// directBlocked — закрыт ли личный диалог блокировкой между его двумя участниками.
func (h *Hub) directBlocked(ctx context.Context, conversationID, senderID string) (bool, error) {
	memberIDs, err := h.convRepo.MemberIDs(ctx, conversationID)
	if err != nil {
		return false, err
	}
	for _, uid := range memberIDs {
		if uid == senderID {
			continue
		}
		blocked, err := h.blockRepo.AnyBlockBetween(ctx, senderID, uid)
		if err != nil {
			return false, err
		}
		if blocked {
			return true, nil
		}
	}
	return false, nil
}

func (h *Hub) handleEditMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleEditMessage", time.Now())()
	content := strings.TrimSpace(msg.Content)
	if msg.MessageID == "" || content == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message not found"})
		return
	}
	if original.SenderID != c.userID {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "can only edit own messages"})
		return
	}
	if original.Kind != model.MessageText {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "only text messages can be edited"})
		return
	}

	if err := h.msgRepo.UpdateContent(ctx, msg.MessageID, content); err != nil {
		logger.Errorf("ws edit message %s: %v", msg.MessageID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to edit"})
		return
	}

	h.BroadcastToConversation(ctx, original.ConversationID, OutgoingMessage{
		Type: EventMessageEdited,
		Payload: MessageEditedPayload{
			MessageID:      msg.MessageID,
			ConversationID: original.ConversationID,
			Content:        content,
			EditedAt:       time.Now().UTC(),
		},
	})
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleDeleteMessage", time.Now())()
	if msg.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message not found"})
		return
	}
	if original.SenderID != c.userID {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "can only delete own messages"})
		return
	}

	if err := h.msgRepo.SoftDelete(ctx, msg.MessageID); err != nil {
		logger.Errorf("ws delete message %s: %v", msg.MessageID, err)
		return
	}

	h.BroadcastToConversation(ctx, original.ConversationID, OutgoingMessage{
		Type: EventMessageDeleted,
		Payload: MessageDeletedPayload{
			MessageID:      msg.MessageID,
			ConversationID: original.ConversationID,
		},
	})
}

func (h *Hub) handlePinMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.MessageID == "" || msg.ConversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ok, err := h.isMember(ctx, msg.ConversationID, c.userID); err != nil || !ok {
		return
	}
	if err := h.pinnedRepo.Pin(ctx, msg.ConversationID, msg.MessageID, c.userID); err != nil {
		logger.Errorf("ws pin message %s: %v", msg.MessageID, err)
		return
	}

	h.BroadcastToConversation(ctx, msg.ConversationID, OutgoingMessage{
		Type: EventMessagePinned,
		Payload: PinPayload{
			MessageID:      msg.MessageID,
			ConversationID: msg.ConversationID,
			PinnedBy:       c.userID,
		},
	})
}

func (h *Hub) handleUnpinMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.MessageID == "" || msg.ConversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ok, err := h.isMember(ctx, msg.ConversationID, c.userID); err != nil || !ok {
		return
	}
	if err := h.pinnedRepo.Unpin(ctx, msg.ConversationID, msg.MessageID); err != nil {
		logger.Errorf("ws unpin message %s: %v", msg.MessageID, err)
		return
	}

	h.BroadcastToConversation(ctx, msg.ConversationID, OutgoingMessage{
		Type: EventMessageUnpinned,
		Payload: PinPayload{
			MessageID:      msg.MessageID,
			ConversationID: msg.ConversationID,
		},
	})
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	memberIDs, err := h.convRepo.MemberIDs(ctx, msg.ConversationID)
	if err != nil {
		logger.Errorf("ws get members for typing conv=%s: %v", msg.ConversationID, err)
		return
	}

	out := OutgoingMessage{
		Type: EventTyping,
		Payload: TypingPayload{
			ConversationID: msg.ConversationID,
			UserID:         c.userID,
		},
	}
	for _, uid := range memberIDs {
		if uid != c.userID {
			h.sendToUser(uid, out)
		}
	}
}

func (h *Hub) handleMessageRead(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	ids, err := h.msgRepo.MarkRead(ctx, msg.ConversationID, c.userID, now)
	if err != nil {
		logger.Errorf("ws mark read conv=%s user=%s: %v", msg.ConversationID, c.userID, err)
		return
	}

	// last_read_at двигается всегда, даже если непрочитанных не было.
	if err := h.convRepo.SetLastRead(ctx, msg.ConversationID, c.userID, now); err != nil {
		logger.Errorf("ws update last_read_at conv=%s user=%s: %v", msg.ConversationID, c.userID, err)
	}

	memberIDs, err := h.convRepo.MemberIDs(ctx, msg.ConversationID)
	if err != nil {
		logger.Errorf("ws get members for read conv=%s: %v", msg.ConversationID, err)
		return
	}

	out := OutgoingMessage{
		Type: EventMessageRead,
		Payload: MessageReadPayload{
			ConversationID: msg.ConversationID,
			UserID:         c.userID,
			MessageIDs:     ids,
		},
	}
	for _, uid := range memberIDs {
		if uid != c.userID {
			h.sendToUser(uid, out)
		}
	}
}

func (h *Hub) broadcastUserStatus(userID string, online bool) {
	evType := EventUserOffline
	if online {
		evType = EventUserOnline
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	convs, err := h.convRepo.ListByUserID(ctx, userID)
	if err != nil {
		logger.Errorf("ws get conversations for status broadcast user=%s: %v", userID, err)
		return
	}

	out := OutgoingMessage{
		Type: evType,
		Payload: UserStatusPayload{
			UserID: userID,
			Online: online,
		},
	}

	notified := make(map[string]struct{}, 16)
	for _, conv := range convs {
		memberIDs, err := h.convRepo.MemberIDs(ctx, conv.ID)
		if err != nil {
			logger.Errorf("ws get members for status broadcast conv=%s: %v", conv.ID, err)
			continue
		}
		for _, uid := range memberIDs {
			if uid == userID {
				continue
			}
			if _, ok := notified[uid]; ok {
				continue
			}
			notified[uid] = struct{}{}
			h.sendToUser(uid, out)
		}
	}
}

// BroadcastToConversation sends a message to all members of a conversation.
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID string, msg OutgoingMessage) {
	defer logger.DeferLogDuration("ws.BroadcastToConversation", time.Now())()
	memberIDs, err := h.convRepo.MemberIDs(ctx, conversationID)
	if err != nil {
		logger.Errorf("ws broadcast to conversation %s: %v", conversationID, err)
		return
	}
	for _, uid := range memberIDs {
		h.sendToUser(uid, msg)
	}
}

// SendToUser delivers an event to all live connections of one user.
func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.sendToUser(userID, msg)
}

func (h *Hub) sendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
