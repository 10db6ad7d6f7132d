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

type PollHandler struct {
	pollRepo *repository.PollRepository
	msgRepo  *repository.MessageRepository
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
	hub      *ws.Hub
}

func NewPollHandler(
	pollRepo *repository.PollRepository,
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	hub *ws.Hub,
) *PollHandler {
	return &PollHandler{pollRepo: pollRepo, msgRepo: msgRepo, convRepo: convRepo, userRepo: userRepo, hub: hub}
}

type CreatePollRequest struct {
	ConversationID string   `json:"conversation_id"`
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	Options        []string `json:"options"`
	AllowMultiple  bool     `json:"allow_multiple"`
}

// Create создаёт опрос и сообщение-носитель. Только групповые беседы.
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	question, options, err := model.ValidatePollInput(req.Question, req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, "question and at least 2 options required")
		return
	}
	conv, err := h.convRepo.GetByID(r.Context(), req.ConversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.Kind.IsGroupLike() {
		writeError(w, http.StatusBadRequest, "polls are only available in group conversations")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), conv.ID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	now := time.Now().UTC()
	poll := &model.Poll{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Question:       question,
		Description:    strings.TrimSpace(req.Description),
		CreatedBy:      userID,
		AllowMultiple:  req.AllowMultiple,
		CreatedAt:      now,
	}
	for i, text := range options {
		poll.Options = append(poll.Options, model.PollOption{
			ID: uuid.New().String(), Position: i, Text: text, Votes: []model.PollVote{},
		})
	}
	if err := h.pollRepo.Create(r.Context(), poll); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create poll")
		return
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Kind:           model.MessagePoll,
		PollID:         poll.ID,
		Status:         model.MessageStatusSent,
		CreatedAt:      now,
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create poll message")
		return
	}
	if err := h.pollRepo.SetMessageID(r.Context(), poll.ID, m.ID); err == nil {
		poll.MessageID = m.ID
	}
	if creator, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		pub := creator.ToPublic()
		poll.Creator = &pub
		m.Sender = &pub
	}

	h.hub.FanOutMessage(r.Context(), conv, m)
	h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
		Type:    ws.EventPollCreated,
		Payload: poll,
	})
	writeJSON(w, http.StatusCreated, poll)
}

func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	poll, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "poll not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), poll.ConversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

type VoteRequest struct {
	OptionID string `json:"option_id"`
}

// Vote отдаёт голос. В режиме одного голоса предыдущий выбор переносится.
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "option_id required")
		return
	}
	poll, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		writeError(w, http.StatusNotFound, "poll not found")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), poll.ConversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if poll.IsClosed {
		writeError(w, http.StatusConflict, "poll is closed")
		return
	}
	if ok, err := h.pollRepo.OptionBelongs(r.Context(), pollID, req.OptionID); err != nil || !ok {
		writeError(w, http.StatusNotFound, "option not found")
		return
	}
	if err := h.pollRepo.Vote(r.Context(), pollID, req.OptionID, userID, poll.AllowMultiple); err != nil {
		if errors.Is(err, model.ErrPollDuplicateVote) {
			writeError(w, http.StatusConflict, "already voted for this option")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to vote")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), poll.ConversationID, ws.OutgoingMessage{
		Type: ws.EventPollVote,
		Payload: ws.PollVotePayload{
			ConversationID: poll.ConversationID,
			PollID:         pollID,
			OptionID:       req.OptionID,
			UserID:         userID,
		},
	})
	updated, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RemoveVote снимает голос с варианта.
func (h *PollHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	optionID := chi.URLParam(r, "optionId")
	userID := middleware.GetUserID(r.Context())

	poll, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		writeError(w, http.StatusNotFound, "poll not found")
		return
	}
	if _, err := h.convRepo.GetMember(r.Context(), poll.ConversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if poll.IsClosed {
		writeError(w, http.StatusConflict, "poll is closed")
		return
	}
	if err := h.pollRepo.RemoveVote(r.Context(), optionID, userID); err != nil {
		if errors.Is(err, model.ErrPollNoVote) {
			writeError(w, http.StatusNotFound, "no vote for this option")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove vote")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), poll.ConversationID, ws.OutgoingMessage{
		Type: ws.EventPollVote,
		Payload: ws.PollVotePayload{
			ConversationID: poll.ConversationID,
			PollID:         pollID,
			OptionID:       optionID,
			UserID:         userID,
			Removed:        true,
		},
	})
	updated, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Close завершает опрос. Доступно создателю опроса или админу беседы.
func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	poll, err := h.pollRepo.GetByID(r.Context(), pollID)
	if err != nil {
		writeError(w, http.StatusNotFound, "poll not found")
		return
	}
	member, err := h.convRepo.GetMember(r.Context(), poll.ConversationID, userID)
	if err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	if poll.CreatedBy != userID && member.Role != "admin" {
		writeError(w, http.StatusForbidden, "only the creator or an admin can close the poll")
		return
	}
	if poll.IsClosed {
		writeError(w, http.StatusConflict, "poll is already closed")
		return
	}
	if err := h.pollRepo.Close(r.Context(), pollID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to close poll")
		return
	}
	h.hub.BroadcastToConversation(r.Context(), poll.ConversationID, ws.OutgoingMessage{
		Type: ws.EventPollClosed,
		Payload: ws.PollClosedPayload{
			ConversationID: poll.ConversationID,
			PollID:         pollID,
			ClosedBy:       userID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListByConversation возвращает опросы беседы, свежие первыми.
func (h *PollHandler) ListByConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if _, err := h.convRepo.GetMember(r.Context(), conversationID, userID); err != nil {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}
	polls, err := h.pollRepo.ListByConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list polls")
		return
	}
	if polls == nil {
		polls = []*model.Poll{}
	}
	writeJSON(w, http.StatusOK, polls)
}
