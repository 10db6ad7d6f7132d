package memory

import (
	"context"
	"sync"
	"time"
)

const (
	profileTTL           = 30 * 24 * time.Hour
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
)

type item struct {
	val string
	exp time.Time
}

type Client struct {
	mu       sync.RWMutex
	profiles map[string]item
	limit    map[string][]time.Time
	flags    map[string]string
}

func New() *Client {
	return &Client{
		profiles: make(map[string]item),
		limit:    make(map[string][]time.Time),
		flags:    make(map[string]string),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetProfile(ctx context.Context, sessionID, profileJSON string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[sessionID] = item{val: profileJSON, exp: time.Now().Add(profileTTL)}
	return nil
}

func (c *Client) GetProfile(ctx context.Context, sessionID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.profiles[sessionID]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteProfile(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, sessionID)
	return nil
}

func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-loginRateLimitWindow)
	slice := c.limit[email]
	var kept []time.Time
	for _, t := range slice {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= loginRateLimitMax {
		return false, nil
	}
	kept = append(kept, now)
	c.limit[email] = kept
	return true, nil
}

func (c *Client) SetFlag(ctx context.Context, userID, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[userID+":"+name] = value
	return nil
}

func (c *Client) GetFlag(ctx context.Context, userID, name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags[userID+":"+name], nil
}
