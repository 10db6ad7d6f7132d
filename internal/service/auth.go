package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/middleware"
	"github.com/chasmos/internal/model"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/storage"
)

var (
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const minPasswordLen = 8

// Валидация email: допустимый формат (упрощённый, без полного RFC).
var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthService — регистрация, вход по паролю и выдача opaque bearer-токенов.
// Токен не хранится: в БД только SHA-256, в store — кеш профиля на время жизни сессии.
type AuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	store       storage.SessionCacheStore
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	store storage.SessionCacheStore,
) *AuthService {
	return &AuthService{userRepo: userRepo, sessionRepo: sessionRepo, store: store}
}

type SignupRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

type AuthResponse struct {
	Token     string           `json:"token"`
	SessionID string           `json:"session_id"`
	User      model.UserPublic `json:"user"`
	IsNewUser bool             `json:"is_new_user,omitempty"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	emailNorm := strings.TrimSpace(strings.ToLower(req.Email))
	username := strings.TrimSpace(req.Username)
	if emailNorm == "" || username == "" {
		return nil, fmt.Errorf("username и email обязательны")
	}
	if !emailRegexp.MatchString(emailNorm) {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if _, err := s.userRepo.GetByEmail(ctx, emailNorm); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        emailNorm,
		PasswordHash: string(hash),
		LastSeenAt:   now,
		CreatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	resp, err := s.issueSession(ctx, user, req.DeviceName)
	if err != nil {
		return nil, err
	}
	resp.IsNewUser = true
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	emailNorm := strings.TrimSpace(strings.ToLower(req.Email))
	if emailNorm == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	allowed, err := s.store.CheckLoginRateLimit(ctx, emailNorm)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}
	user, err := s.userRepo.GetByEmail(ctx, emailNorm)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, user, req.DeviceName)
}

// issueSession генерирует токен, пишет сессию в БД и кеширует профиль.
// Если кеш не записался — сессия откатывается: без профиля токен бесполезен.
func (s *AuthService) issueSession(ctx context.Context, user *model.User, deviceName string) (*AuthResponse, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	now := time.Now().UTC()
	session := &model.Session{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		TokenHash:  middleware.HashToken(token),
		DeviceName: strings.TrimSpace(deviceName),
		LastSeenAt: now,
		CreatedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	profile, err := json.Marshal(user.ToPublic())
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProfile(ctx, session.ID, string(profile)); err != nil {
		logger.Errorf("issueSession: SetProfile failed: %v", err)
		if _, revErr := s.sessionRepo.RevokeByTokenHash(ctx, session.TokenHash); revErr != nil {
			logger.Errorf("issueSession: rollback revoke session: %v", revErr)
		}
		return nil, fmt.Errorf("cache profile: %w", err)
	}
	return &AuthResponse{Token: token, SessionID: session.ID, User: user.ToPublic()}, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return s.sessionRepo.ListByUserID(ctx, userID)
}

// Logout отзывает сессию по токену и чистит кеш профиля.
func (s *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	session, err := s.sessionRepo.GetByTokenHash(ctx, middleware.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	ok, err := s.sessionRepo.RevokeByTokenHash(ctx, session.TokenHash)
	if err != nil {
		return false, err
	}
	if err := s.store.DeleteProfile(ctx, session.ID); err != nil {
		logger.Errorf("Logout: DeleteProfile session_id=%s: %v", middleware.MaskToken(session.ID), err)
	}
	return ok, nil
}

func (s *AuthService) LogoutAllSessions(ctx context.Context, userID string) (int64, error) {
	ids, err := s.sessionRepo.RevokeByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.store.DeleteProfile(ctx, id); err != nil {
			logger.Errorf("LogoutAllSessions: DeleteProfile session_id=%s: %v", middleware.MaskToken(id), err)
		}
	}
	return int64(len(ids)), nil
}

// ValidateToken проверяет токен и возвращает user_id и session_id.
// Требуются оба условия: активная сессия в БД и кешированный профиль в store.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (userID, sessionID string, err error) {
	if token == "" {
		return "", "", ErrInvalidToken
	}
	sess, err := s.sessionRepo.GetByTokenHash(ctx, middleware.HashToken(token))
	if err != nil {
		return "", "", ErrInvalidToken
	}
	profile, err := s.store.GetProfile(ctx, sess.ID)
	if err != nil || profile == "" {
		logger.Infof("validate: no cached profile session_id=%s", middleware.MaskToken(sess.ID))
		return "", "", ErrInvalidToken
	}
	if err := s.sessionRepo.UpdateLastSeen(ctx, sess.ID, time.Now().UTC()); err != nil {
		logger.Errorf("validate: UpdateLastSeen session_id=%s: %v", middleware.MaskToken(sess.ID), err)
	}
	return sess.UserID, sess.ID, nil
}

// RefreshProfile перезаписывает кеш профиля во всех активных сессиях пользователя
// (вызывается после изменения профиля).
func (s *AuthService) RefreshProfile(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(user.ToPublic())
	if err != nil {
		return err
	}
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := s.store.SetProfile(ctx, sess.ID, string(raw)); err != nil {
			logger.Errorf("RefreshProfile: SetProfile session_id=%s: %v", middleware.MaskToken(sess.ID), err)
		}
	}
	return nil
}
