package storage

import "context"

// SessionCacheStore — кеш профилей активных сессий, rate limit логина
// и пользовательские флаги (тема, сплеш-экран).
// Реализации: redis.Client, memory.Client, devstore.Client (для -dev без Redis).
type SessionCacheStore interface {
	SetProfile(ctx context.Context, sessionID, profileJSON string) error
	GetProfile(ctx context.Context, sessionID string) (string, error)
	DeleteProfile(ctx context.Context, sessionID string) error
	CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error)
	SetFlag(ctx context.Context, userID, name, value string) error
	GetFlag(ctx context.Context, userID, name string) (string, error)
	Close() error
}
