package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/ws"
)

type MessageHandler struct {
	msgRepo    *repository.MessageRepository
	convRepo   *repository.ConversationRepository
	userRepo   *repository.UserRepository
	pinnedRepo *repository.PinnedRepository
	blockRepo  *repository.BlockRepository
	hub        *ws.Hub
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	pinnedRepo *repository.PinnedRepository,
	blockRepo *repository.BlockRepository,
	hub *ws.Hub,
) *MessageHandler {
	return &MessageHandler{
		msgRepo: msgRepo, convRepo: convRepo, userRepo: userRepo,
		pinnedRepo: pinnedRepo, blockRepo: blockRepo, hub: hub,
	}
}

func (h *MessageHandler) requireMember(w http.ResponseWriter, r *http.Request, conversationID string) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if _, err := h.convRepo.GetMember(r.Context(), conversationID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusForbidden, "not a member")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to check membership")
		}
		return "", false
	}
	return userID, true
}

// GetMessages — страница истории в хронологическом порядке.
// ?before=RFC3339 — курсор, по умолчанию текущий момент.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	if _, ok := h.requireMember(w, r, conversationID); !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 100 {
		limit = 100
	}
	before := time.Now().UTC().Add(time.Second)
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = t
	}

	messages, err := h.msgRepo.ListByConversation(r.Context(), conversationID, before, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	if pinned, err := h.pinnedRepo.IDSet(r.Context(), conversationID); err == nil {
		for i := range messages {
			messages[i].Pinned = pinned[messages[i].ID]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type SendMessageRequest struct {
	Kind     model.MessageKind `json:"kind"`
	Content  string            `json:"content"`
	FileURL  string            `json:"file_url"`
	FileName string            `json:"file_name"`
	FileSize int64             `json:"file_size"`
}

// Send — REST-вариант отправки (дублирует WS new_message для клиентов без сокета).
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	userID, ok := h.requireMember(w, r, conversationID)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && req.FileURL == "" {
		writeError(w, http.StatusBadRequest, "content or file required")
		return
	}

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.Kind == model.ConversationDirect {
		memberIDs, err := h.convRepo.MemberIDs(r.Context(), conversationID)
		if err == nil {
			for _, uid := range memberIDs {
				if uid == userID {
					continue
				}
				if blocked, err := h.blockRepo.AnyBlockBetween(r.Context(), userID, uid); err == nil && blocked {
					writeError(w, http.StatusForbidden, "conversation is blocked")
					return
				}
			}
		}
	}

	kind := model.MessageText
	if req.Kind == model.MessageDocument || req.Kind == model.MessageImage {
		kind = req.Kind
	}
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       userID,
		Kind:           kind,
		Content:        content,
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if req.FileURL != "" {
		fileName := strings.TrimSpace(strings.ReplaceAll(req.FileName, "+", " "))
		m.Attachment = &model.Attachment{URL: req.FileURL, FileName: fileName, FileSize: req.FileSize}
		if kind == model.MessageText {
			m.Kind = model.MessageDocument
		}
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	if sender, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		pub := sender.ToPublic()
		m.Sender = &pub
	}
	h.hub.FanOutMessage(r.Context(), conv, m)
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	userID, ok := h.requireMember(w, r, conversationID)
	if !ok {
		return
	}

	now := time.Now().UTC()
	ids, err := h.msgRepo.MarkRead(r.Context(), conversationID, userID, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	if err := h.convRepo.SetLastRead(r.Context(), conversationID, userID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update read marker")
		return
	}
	if len(ids) > 0 {
		h.hub.BroadcastToConversation(r.Context(), conversationID, ws.OutgoingMessage{
			Type: ws.EventMessageRead,
			Payload: ws.MessageReadPayload{
				ConversationID: conversationID,
				UserID:         userID,
				MessageIDs:     ids,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "read_count": len(ids)})
}

// SearchMessages ищет по подстроке внутри одной беседы.
func (h *MessageHandler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	if _, ok := h.requireMember(w, r, conversationID); !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}})
		return
	}
	limit := queryInt(r, "limit", 30)
	if limit > 50 {
		limit = 50
	}
	messages, err := h.msgRepo.Search(r.Context(), conversationID, query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// GetPinnedMessages returns pinned messages for a conversation.
func (h *MessageHandler) GetPinnedMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	if _, ok := h.requireMember(w, r, conversationID); !ok {
		return
	}
	pinned, err := h.pinnedRepo.ListByConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get pinned messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pinned": pinned})
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

// Edit изменяет текст собственного сообщения (только kind=text).
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	original, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if original.SenderID != userID {
		writeError(w, http.StatusForbidden, "can only edit own messages")
		return
	}
	if original.Kind != model.MessageText {
		writeError(w, http.StatusBadRequest, "only text messages can be edited")
		return
	}
	if err := h.msgRepo.UpdateContent(r.Context(), messageID, content); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to edit")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), original.ConversationID, ws.OutgoingMessage{
		Type: ws.EventMessageEdited,
		Payload: ws.MessageEditedPayload{
			MessageID:      messageID,
			ConversationID: original.ConversationID,
			Content:        content,
			EditedAt:       time.Now().UTC(),
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Delete мягко удаляет собственное сообщение.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	original, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if original.SenderID != userID {
		writeError(w, http.StatusForbidden, "can only delete own messages")
		return
	}
	if err := h.msgRepo.SoftDelete(r.Context(), messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), original.ConversationID, ws.OutgoingMessage{
		Type: ws.EventMessageDeleted,
		Payload: ws.MessageDeletedPayload{
			MessageID:      messageID,
			ConversationID: original.ConversationID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Pin закрепляет сообщение беседы.
func (h *MessageHandler) Pin(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	original, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), original.ConversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if err := h.pinnedRepo.Pin(r.Context(), original.ConversationID, messageID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to pin")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), original.ConversationID, ws.OutgoingMessage{
		Type: ws.EventMessagePinned,
		Payload: ws.PinPayload{
			MessageID:      messageID,
			ConversationID: original.ConversationID,
			PinnedBy:       userID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Unpin снимает закрепление.
func (h *MessageHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	original, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), original.ConversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if err := h.pinnedRepo.Unpin(r.Context(), original.ConversationID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unpin")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), original.ConversationID, ws.OutgoingMessage{
		Type: ws.EventMessageUnpinned,
		Payload: ws.PinPayload{
			MessageID:      messageID,
			ConversationID: original.ConversationID,
			PinnedBy:       userID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
