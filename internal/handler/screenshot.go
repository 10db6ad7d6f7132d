package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/ws"
)

type ScreenshotHandler struct {
	screenshotRepo *repository.ScreenshotRepository
	convRepo       *repository.ConversationRepository
	userRepo       *repository.UserRepository
	msgRepo        *repository.MessageRepository
	hub            *ws.Hub
}

func NewScreenshotHandler(
	screenshotRepo *repository.ScreenshotRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	msgRepo *repository.MessageRepository,
	hub *ws.Hub,
) *ScreenshotHandler {
	return &ScreenshotHandler{
		screenshotRepo: screenshotRepo,
		convRepo:       convRepo,
		userRepo:       userRepo,
		msgRepo:        msgRepo,
		hub:            hub,
	}
}

type RecordScreenshotRequest struct {
	ConversationID string `json:"conversation_id"`
	ImageURL       string `json:"image_url"`
	FileName       string `json:"file_name"`
	FileSize       int64  `json:"file_size"`
	MimeType       string `json:"mime_type"`
	Width          *int   `json:"width,omitempty"`
	Height         *int   `json:"height,omitempty"`
}

// Record сохраняет факт скриншота и объявляет его системным сообщением
// всем участникам беседы.
func (h *ScreenshotHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req RecordScreenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ConversationID == "" || req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "conversation_id and image_url required")
		return
	}
	conv, err := h.convRepo.GetByID(r.Context(), req.ConversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), conv.ID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	actor, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	now := time.Now().UTC()
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Kind:           model.MessageSystem,
		Content:        fmt.Sprintf("%s сделал(а) скриншот чата", actor.Username),
		Status:         model.MessageStatusSent,
		CreatedAt:      now,
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create system message")
		return
	}

	shot := &model.Screenshot{
		ID:              uuid.New().String(),
		ConversationID:  conv.ID,
		CapturedBy:      userID,
		ImageURL:        req.ImageURL,
		FileName:        req.FileName,
		FileSize:        req.FileSize,
		MimeType:        req.MimeType,
		Width:           req.Width,
		Height:          req.Height,
		SystemMessageID: m.ID,
		CreatedAt:       now,
	}
	if err := h.screenshotRepo.Create(r.Context(), shot); err != nil {
		logger.Errorf("screenshot record conv=%s: %v", conv.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to record screenshot")
		return
	}
	pub := actor.ToPublic()
	shot.Capturer = &pub

	h.hub.FanOutMessage(r.Context(), conv, m)
	writeJSON(w, http.StatusCreated, shot)
}

// List возвращает последние скриншоты беседы.
func (h *ScreenshotHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	if _, err := h.convRepo.GetMember(r.Context(), conversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	shots, err := h.screenshotRepo.ListByConversation(r.Context(), conversationID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load screenshots")
		return
	}
	writeJSON(w, http.StatusOK, shots)
}

// Delete удаляет запись скриншота. Разрешено только автору снимка.
func (h *ScreenshotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	s, err := h.screenshotRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "screenshot not found")
		return
	}
	if s.CapturedBy != userID {
		writeError(w, http.StatusForbidden, "can only delete own screenshots")
		return
	}
	if err := h.screenshotRepo.Delete(r.Context(), id); err != nil {
		logger.Errorf("delete screenshot %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete screenshot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
