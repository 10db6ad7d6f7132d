package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/storage"
)

// HashToken — SHA-256 токена; в БД хранится только хеш.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BearerAuth проверяет токен локально: активная сессия по token_hash
// плюс кешированный профиль в store. Без любого из двух — 401.
func BearerAuth(sessionRepo *repository.SessionRepository, store storage.SessionCacheStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			session, err := sessionRepo.GetByTokenHash(r.Context(), HashToken(token))
			if err != nil || session == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			profile, err := store.GetProfile(r.Context(), session.ID)
			if err != nil || profile == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if err := sessionRepo.UpdateLastSeen(r.Context(), session.ID, time.Now().UTC()); err != nil {
				logger.Errorf("bearer middleware UpdateLastSeen session_id=%s: %v", MaskToken(session.ID), err)
			}
			ctx := context.WithValue(r.Context(), UserIDKey, session.UserID)
			ctx = context.WithValue(ctx, SessionIDKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
