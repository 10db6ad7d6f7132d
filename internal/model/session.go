package model

import "time"

// Session — серверная запись о выданном bearer-токене.
// Сам токен не хранится, только его SHA-256 (token_hash).
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"-"`
	DeviceName string     `json:"device_name"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
