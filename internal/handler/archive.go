package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/ws"
)

// ArchiveHandler — персональный архив и общий архив группы.
type ArchiveHandler struct {
	archiveRepo *repository.ArchiveRepository
	convRepo    *repository.ConversationRepository
	hub         *ws.Hub
}

func NewArchiveHandler(archiveRepo *repository.ArchiveRepository, convRepo *repository.ConversationRepository, hub *ws.Hub) *ArchiveHandler {
	return &ArchiveHandler{archiveRepo: archiveRepo, convRepo: convRepo, hub: hub}
}

// Archive прячет беседу только у текущего пользователя.
func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	if _, err := h.convRepo.GetMember(r.Context(), conversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if err := h.archiveRepo.Archive(r.Context(), userID, conversationID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ArchiveHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	if err := h.archiveRepo.Unarchive(r.Context(), userID, conversationID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unarchive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ArchiveForAll — общий архив группы, только для админа.
func (h *ArchiveHandler) ArchiveForAll(w http.ResponseWriter, r *http.Request) {
	h.setGroupArchived(w, r, true)
}

func (h *ArchiveHandler) UnarchiveForAll(w http.ResponseWriter, r *http.Request) {
	h.setGroupArchived(w, r, false)
}

func (h *ArchiveHandler) setGroupArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.Kind.IsGroupLike() {
		writeError(w, http.StatusBadRequest, "shared archive is only available for groups")
		return
	}
	member, err := h.convRepo.GetMember(r.Context(), conversationID, userID)
	if err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if member.Role != "admin" && conv.CreatedBy != userID {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}
	if err := h.convRepo.SetArchived(r.Context(), conversationID, archived, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update archive")
		return
	}
	conv.Archived = archived
	h.hub.BroadcastToConversation(r.Context(), conversationID, ws.OutgoingMessage{
		Type:    ws.EventChatUpdated,
		Payload: conv,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List возвращает ID заархивированных бесед текущего пользователя.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	set, err := h.archiveRepo.IDSet(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string][]string{"conversation_ids": ids})
}

// Status — заархивирована ли беседа у текущего пользователя.
func (h *ArchiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	set, err := h.archiveRepo.IDSet(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get archive status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": set[conversationID]})
}
