package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/ws"
)

type ChatHandler struct {
	convRepo    *repository.ConversationRepository
	userRepo    *repository.UserRepository
	msgRepo     *repository.MessageRepository
	archiveRepo *repository.ArchiveRepository
	blockRepo   *repository.BlockRepository
	hub         *ws.Hub
}

func NewChatHandler(
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	msgRepo *repository.MessageRepository,
	archiveRepo *repository.ArchiveRepository,
	blockRepo *repository.BlockRepository,
	hub *ws.Hub,
) *ChatHandler {
	return &ChatHandler{
		convRepo: convRepo, userRepo: userRepo, msgRepo: msgRepo,
		archiveRepo: archiveRepo, blockRepo: blockRepo, hub: hub,
	}
}

type CreateDirectRequest struct {
	UserID string `json:"user_id"`
}

type CreateGroupRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Kind        model.ConversationKind `json:"kind"`
	MemberIDs   []string               `json:"member_ids"`
}

func (h *ChatHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	var req CreateDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "cannot create conversation with yourself")
		return
	}

	// Заблокированному пользователю нельзя открыть диалог.
	if blocked, err := h.blockRepo.AnyBlockBetween(r.Context(), currentUserID, req.UserID); err == nil && blocked {
		writeError(w, http.StatusForbidden, "conversation is blocked")
		return
	}

	existing, err := h.convRepo.FindDirect(r.Context(), currentUserID, req.UserID)
	if err == nil {
		view, err := h.enrichConversation(r.Context(), existing, currentUserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enrich conversation")
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to look up conversation")
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Kind:      model.ConversationDirect,
		CreatedBy: currentUserID,
		CreatedAt: now,
	}
	members := []model.ConversationMember{
		{ConversationID: conv.ID, UserID: currentUserID, Role: "member", JoinedAt: now},
		{ConversationID: conv.ID, UserID: req.UserID, Role: "member", JoinedAt: now},
	}
	if err := h.convRepo.Create(r.Context(), conv, members); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	view, err := h.enrichConversation(r.Context(), conv, currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enrich conversation")
		return
	}

	h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
		Type:    ws.EventChatCreated,
		Payload: view,
	})
	writeJSON(w, http.StatusCreated, view)
}

func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	kind := model.ConversationGroup
	if req.Kind == model.ConversationCommunity || req.Kind == model.ConversationDocument {
		kind = req.Kind
	}

	currentUserID := middleware.GetUserID(r.Context())
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:          uuid.New().String(),
		Kind:        kind,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   currentUserID,
		CreatedAt:   now,
	}
	members := []model.ConversationMember{
		{ConversationID: conv.ID, UserID: currentUserID, Role: "admin", JoinedAt: now},
	}
	seen := map[string]bool{currentUserID: true}
	for _, uid := range req.MemberIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		if _, err := h.userRepo.GetByID(r.Context(), uid); err != nil {
			writeError(w, http.StatusNotFound, "member not found: "+uid)
			return
		}
		members = append(members, model.ConversationMember{
			ConversationID: conv.ID, UserID: uid, Role: "member", JoinedAt: now,
		})
	}
	if err := h.convRepo.Create(r.Context(), conv, members); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	view, err := h.enrichConversation(r.Context(), conv, currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enrich conversation")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
		Type:    ws.EventChatCreated,
		Payload: view,
	})
	writeJSON(w, http.StatusCreated, view)
}

// List возвращает беседы пользователя с превью, счётчиками и архивными флагами.
// ?archived=1 — только архив (персональный или общий), иначе активные.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	wantArchived := r.URL.Query().Get("archived") == "1"

	convs, err := h.convRepo.ListByUserID(r.Context(), currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}
	archivedSet, err := h.archiveRepo.IDSet(r.Context(), currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load archive")
		return
	}

	views := make([]model.ConversationView, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		inArchive := conv.Archived || archivedSet[conv.ID]
		if inArchive != wantArchived {
			continue
		}
		view, err := h.enrichConversation(r.Context(), conv, currentUserID)
		if err != nil {
			logger.Errorf("list conversations: enrich %s: %v", conv.ID, err)
			continue
		}
		view.ArchivedForMe = archivedSet[conv.ID]
		views = append(views, *view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())

	if _, err := h.convRepo.GetMember(r.Context(), conversationID, currentUserID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	view, err := h.enrichConversation(r.Context(), conv, currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enrich conversation")
		return
	}
	archivedSet, err := h.archiveRepo.IDSet(r.Context(), currentUserID)
	if err == nil {
		view.ArchivedForMe = archivedSet[conversationID]
	}
	writeJSON(w, http.StatusOK, view)
}

type UpdateConversationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
}

func (h *ChatHandler) Update(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())

	member, err := h.convRepo.GetMember(r.Context(), conversationID, currentUserID)
	if err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.Kind.IsGroupLike() {
		writeError(w, http.StatusBadRequest, "only group conversations can be renamed")
		return
	}
	if member.Role != "admin" && conv.CreatedBy != currentUserID {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name, description, avatarURL := conv.Name, conv.Description, conv.AvatarURL
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be blank")
			return
		}
	}
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}
	if req.AvatarURL != nil {
		avatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if err := h.convRepo.UpdateInfo(r.Context(), conversationID, name, description, avatarURL); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update conversation")
		return
	}
	conv.Name, conv.Description, conv.AvatarURL = name, description, avatarURL

	h.hub.BroadcastToConversation(r.Context(), conversationID, ws.OutgoingMessage{
		Type:    ws.EventChatUpdated,
		Payload: conv,
	})
	writeJSON(w, http.StatusOK, conv)
}

type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids"`
}

func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())

	var req AddMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "member_ids required")
		return
	}
	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.Kind.IsGroupLike() {
		writeError(w, http.StatusBadRequest, "cannot add members to a direct conversation")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), conversationID, currentUserID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	actor, err := h.userRepo.GetByID(r.Context(), currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	now := time.Now().UTC()
	for _, uid := range req.MemberIDs {
		added, err := h.userRepo.GetByID(r.Context(), uid)
		if err != nil {
			writeError(w, http.StatusNotFound, "user not found: "+uid)
			return
		}
		if err := h.convRepo.AddMember(r.Context(), &model.ConversationMember{
			ConversationID: conversationID, UserID: uid, Role: "member", JoinedAt: now,
		}); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add member")
			return
		}
		h.hub.BroadcastToConversation(r.Context(), conversationID, ws.OutgoingMessage{
			Type: ws.EventMemberAdded,
			Payload: ws.MemberPayload{
				ConversationID: conversationID,
				UserID:         uid,
				Username:       added.Username,
				ActorID:        currentUserID,
			},
		})
		h.postSystemMessage(r.Context(), conv, currentUserID,
			actor.Username+" добавил(а) "+added.Username)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.removeMember(w, r, chi.URLParam(r, "memberId"))
}

// Leave — выход из беседы: удаление самого себя из участников.
func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.removeMember(w, r, middleware.GetUserID(r.Context()))
}

func (h *ChatHandler) removeMember(w http.ResponseWriter, r *http.Request, memberID string) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.Kind.IsGroupLike() {
		writeError(w, http.StatusBadRequest, "cannot remove members from a direct conversation")
		return
	}
	actorMember, err := h.convRepo.GetMember(r.Context(), conversationID, currentUserID)
	if err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	isLeave := memberID == currentUserID
	if !isLeave && actorMember.Role != "admin" && conv.CreatedBy != currentUserID {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}
	removed, err := h.userRepo.GetByID(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.convRepo.RemoveMember(r.Context(), conversationID, memberID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	text := removed.Username + " покинул(а) беседу"
	if !isLeave {
		actor, err := h.userRepo.GetByID(r.Context(), currentUserID)
		if err == nil {
			text = actor.Username + " исключил(а) " + removed.Username
		}
	}
	h.postSystemMessage(r.Context(), conv, currentUserID, text)

	h.hub.BroadcastToConversation(r.Context(), conversationID, ws.OutgoingMessage{
		Type: ws.EventMemberRemoved,
		Payload: ws.MemberPayload{
			ConversationID: conversationID,
			UserID:         memberID,
			Username:       removed.Username,
			ActorID:        currentUserID,
			IsLeave:        isLeave,
		},
	})
	// Исключённый участник событие беседы уже не получит — шлём напрямую.
	h.hub.SendToUser(memberID, ws.OutgoingMessage{
		Type: ws.EventMemberRemoved,
		Payload: ws.MemberPayload{
			ConversationID: conversationID,
			UserID:         memberID,
			IsLeave:        isLeave,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// postSystemMessage сохраняет системное сообщение и рассылает его по WS.
// Превью беседы и тосты системные сообщения не меняют.
func (h *ChatHandler) postSystemMessage(ctx context.Context, conv *model.Conversation, actorID, text string) *model.Message {
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       actorID,
		Kind:           model.MessageSystem,
		Content:        text,
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("system message conv=%s: %v", conv.ID, err)
		return nil
	}
	h.hub.FanOutMessage(ctx, conv, m)
	return m
}

func (h *ChatHandler) enrichConversation(ctx context.Context, conv *model.Conversation, userID string) (*model.ConversationView, error) {
	members, err := h.convRepo.Members(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	view := &model.ConversationView{Conversation: *conv}
	view.Members = make([]model.UserPublic, 0, len(members))
	for _, m := range members {
		view.Members = append(view.Members, model.UserPublic{
			ID: m.UserID, Username: m.Username, AvatarURL: m.AvatarURL, IsOnline: m.IsOnline,
		})
	}
	last, err := h.msgRepo.LastVisible(ctx, conv.ID)
	if err == nil {
		view.LastMessage = last
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if n, err := h.convRepo.UnreadCount(ctx, conv.ID, userID); err == nil {
		view.UnreadCount = n
	}
	return view, nil
}
