package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/ws"
)

type BlockHandler struct {
	blockRepo *repository.BlockRepository
	userRepo  *repository.UserRepository
	convRepo  *repository.ConversationRepository
	msgRepo   *repository.MessageRepository
	hub       *ws.Hub
}

func NewBlockHandler(
	blockRepo *repository.BlockRepository,
	userRepo *repository.UserRepository,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	hub *ws.Hub,
) *BlockHandler {
	return &BlockHandler{blockRepo: blockRepo, userRepo: userRepo, convRepo: convRepo, msgRepo: msgRepo, hub: hub}
}

type blockRequest struct {
	UserID string `json:"user_id"`
}

// Block блокирует пользователя. При первой блокировке в личной беседе
// появляется системное сообщение.
func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *BlockHandler) setBlocked(w http.ResponseWriter, r *http.Request, block bool) {
	userID := middleware.GetUserID(r.Context())
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if req.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot block yourself")
		return
	}
	target, err := h.userRepo.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var changed bool
	if block {
		changed, err = h.blockRepo.Block(r.Context(), userID, req.UserID)
	} else {
		changed, err = h.blockRepo.Unblock(r.Context(), userID, req.UserID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update block")
		return
	}

	// Изменение фиксируем системным сообщением в личной беседе, если она есть.
	if changed {
		h.postBlockSystemMessage(r, userID, target, block)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"blocked": block})
}

func (h *BlockHandler) postBlockSystemMessage(r *http.Request, actorID string, target *model.User, block bool) {
	conv, err := h.convRepo.FindDirect(r.Context(), actorID, target.ID)
	if err != nil {
		return
	}
	actor, err := h.userRepo.GetByID(r.Context(), actorID)
	if err != nil {
		return
	}
	verb := "заблокировал(а)"
	if !block {
		verb = "разблокировал(а)"
	}
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       actorID,
		Kind:           model.MessageSystem,
		Content:        fmt.Sprintf("%s %s %s", actor.Username, verb, target.Username),
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("block system message conv=%s: %v", conv.ID, err)
		return
	}
	h.hub.FanOutMessage(r.Context(), conv, m)
}

type BlockStatusResponse struct {
	IBlocked  bool `json:"i_blocked"`
	BlockedMe bool `json:"blocked_me"`
}

// Status показывает блокировку в обе стороны между текущим пользователем и другим.
func (h *BlockHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userId")
	iBlocked, blockedMe, err := h.blockRepo.Status(r.Context(), userID, otherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load block status")
		return
	}
	writeJSON(w, http.StatusOK, BlockStatusResponse{IBlocked: iBlocked, BlockedMe: blockedMe})
}

// List — пользователи, заблокированные вызывающим.
func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	users, err := h.blockRepo.List(r.Context(), userID)
	if err != nil {
		logger.Errorf("list blocked users user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list blocked users")
		return
	}
	if users == nil {
		users = []model.UserPublic{}
	}
	writeJSON(w, http.StatusOK, users)
}
