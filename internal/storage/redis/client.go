package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Профиль живёт столько же, сколько сессия; rate limit 10 попыток / 10 минут на email.
const (
	ProfileTTL           = 30 * 24 * 3600
	LoginRateLimitWindow = 600 // 10 минут
	LoginRateLimitMax    = 10  // попыток входа за окно
	FlagTTL              = 365 * 24 * 3600
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetProfile кеширует JSON профиля по ключу profile:{sessionID}.
// Наличие ключа — обязательное условие аутентифицированного состояния.
func (c *Client) SetProfile(ctx context.Context, sessionID, profileJSON string) error {
	return c.cli.Set(ctx, "profile:"+sessionID, profileJSON, ProfileTTL*time.Second).Err()
}

// GetProfile возвращает пустую строку, если кеша нет (сессия не считается активной).
func (c *Client) GetProfile(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "profile:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteProfile удаляет кеш при logout или отзыве сессии.
func (c *Client) DeleteProfile(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "profile:"+sessionID).Err()
}

// CheckLoginRateLimit проверяет login_limit:{email}: макс. LoginRateLimitMax попыток за окно. При превышении — HTTP 429.
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginRateLimitWindow*time.Second)
	}
	return n <= int64(LoginRateLimitMax), nil
}

func (c *Client) SetFlag(ctx context.Context, userID, name, value string) error {
	return c.cli.Set(ctx, "flag:"+userID+":"+name, value, FlagTTL*time.Second).Err()
}

func (c *Client) GetFlag(ctx context.Context, userID, name string) (string, error) {
	val, err := c.cli.Get(ctx, "flag:"+userID+":"+name).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// FlushDB очищает текущую БД Redis (сброс кеша профилей и лимитов при тестах/перезапуске).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
