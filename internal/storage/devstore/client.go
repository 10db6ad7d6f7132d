package devstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chasmos/internal/repository"
	"github.com/chasmos/internal/storage/memory"
)

// Client реализует SessionCacheStore для режима -dev: лимиты и флаги в памяти,
// а промах кеша профиля восстанавливается из БД — сессии переживают перезапуск Auth.
type Client struct {
	mem      *memory.Client
	sessions *repository.SessionRepository
	users    *repository.UserRepository
}

func New(sessions *repository.SessionRepository, users *repository.UserRepository) *Client {
	return &Client{mem: memory.New(), sessions: sessions, users: users}
}

func (c *Client) Close() error { return c.mem.Close() }

func (c *Client) SetProfile(ctx context.Context, sessionID, profileJSON string) error {
	return c.mem.SetProfile(ctx, sessionID, profileJSON)
}

// GetProfile при промахе собирает профиль заново по активной сессии из БД.
func (c *Client) GetProfile(ctx context.Context, sessionID string) (string, error) {
	if val, err := c.mem.GetProfile(ctx, sessionID); err != nil || val != "" {
		return val, err
	}
	sess, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	user, err := c.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	raw, err := json.Marshal(user.ToPublic())
	if err != nil {
		return "", err
	}
	profile := string(raw)
	if err := c.mem.SetProfile(ctx, sessionID, profile); err != nil {
		return "", err
	}
	return profile, nil
}

func (c *Client) DeleteProfile(ctx context.Context, sessionID string) error {
	return c.mem.DeleteProfile(ctx, sessionID)
}

func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (bool, error) {
	return c.mem.CheckLoginRateLimit(ctx, email)
}

func (c *Client) SetFlag(ctx context.Context, userID, name, value string) error {
	return c.mem.SetFlag(ctx, userID, name, value)
}

func (c *Client) GetFlag(ctx context.Context, userID, name string) (string, error) {
	return c.mem.GetFlag(ctx, userID, name)
}
