package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/service"
	"github.com/chasmos/internal/storage"
)

type UserHandler struct {
	userRepo *repository.UserRepository
	authSvc  *service.AuthService
	store    storage.SessionCacheStore
}

func NewUserHandler(userRepo *repository.UserRepository, authSvc *service.AuthService, store storage.SessionCacheStore) *UserHandler {
	return &UserHandler{userRepo: userRepo, authSvc: authSvc, store: store}
}

// GetProfile возвращает профиль текущего пользователя.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

// SearchUsers ищет по подстроке имени или email; пустой запрос — пустой список.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusOK, map[string]any{"users": []any{}})
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit > 50 {
		limit = 50
	}
	users, err := h.userRepo.Search(r.Context(), term, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	out := make([]any, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	About     *string `json:"about"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile меняет профиль и обновляет кеш профиля во всех активных сессиях.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	username := user.Username
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username == "" {
			writeError(w, http.StatusBadRequest, "username cannot be blank")
			return
		}
		if username != user.Username {
			if _, err := h.userRepo.GetByUsername(r.Context(), username); err == nil {
				writeError(w, http.StatusConflict, "username already taken")
				return
			} else if !errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to check username")
				return
			}
		}
	}
	about := user.About
	if req.About != nil {
		about = strings.TrimSpace(*req.About)
	}
	avatarURL := user.AvatarURL
	if req.AvatarURL != nil {
		avatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if err := h.userRepo.UpdateProfile(r.Context(), userID, username, about, avatarURL); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if err := h.authSvc.RefreshProfile(r.Context(), userID); err != nil {
		logger.Errorf("update profile: refresh cache user=%s: %v", userID, err)
	}
	updated, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, updated.ToPublic())
}

// Известные клиентские флаги; остальные имена отклоняются.
var knownFlags = map[string]bool{
	"splash_seen":    true,
	"theme_override": true,
	"sound_muted":    true,
}

// GetPreference читает клиентский флаг (тема, сплеш и т.п.) из store.
func (h *UserHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	name := chi.URLParam(r, "name")
	if !knownFlags[name] {
		writeError(w, http.StatusNotFound, "unknown preference")
		return
	}
	val, err := h.store.GetFlag(r.Context(), userID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": val})
}

type SetPreferenceRequest struct {
	Value string `json:"value"`
}

func (h *UserHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	name := chi.URLParam(r, "name")
	if !knownFlags[name] {
		writeError(w, http.StatusNotFound, "unknown preference")
		return
	}
	var req SetPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.store.SetFlag(r.Context(), userID, name, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
