package client

import (
	"encoding/json"

	"github.com/chasmos/internal/model"
)

const (
	keyAuthToken   = "auth_token"
	keyAuthProfile = "auth_profile"
	keySplashSeen  = "splash_seen"
)

// AuthGate decides between the unauthenticated and authenticated states.
// Authenticated requires BOTH a token and a cached profile in storage;
// the pair is re-checked on every transition, never cached.
type AuthGate struct {
	kv KV
}

func NewAuthGate(kv KV) *AuthGate {
	return &AuthGate{kv: kv}
}

// Authenticated reports whether both the token and a parseable profile
// are present in storage.
func (g *AuthGate) Authenticated() bool {
	token, ok := g.kv.Get(keyAuthToken)
	if !ok || token == "" {
		return false
	}
	raw, ok := g.kv.Get(keyAuthProfile)
	if !ok || raw == "" {
		return false
	}
	var p model.UserPublic
	return json.Unmarshal([]byte(raw), &p) == nil
}

// Login persists the session pair, moving the gate to authenticated.
func (g *AuthGate) Login(token string, profile model.UserPublic) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	g.kv.Set(keyAuthToken, token)
	g.kv.Set(keyAuthProfile, string(raw))
	return nil
}

// Logout clears the session pair.
func (g *AuthGate) Logout() {
	g.kv.Delete(keyAuthToken)
	g.kv.Delete(keyAuthProfile)
}

func (g *AuthGate) Token() string {
	token, _ := g.kv.Get(keyAuthToken)
	return token
}

// Profile returns the cached profile, or nil when absent or unreadable.
func (g *AuthGate) Profile() *model.UserPublic {
	raw, ok := g.kv.Get(keyAuthProfile)
	if !ok {
		return nil
	}
	var p model.UserPublic
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	return &p
}

// ShouldShowSplash returns true exactly once per session.
func (g *AuthGate) ShouldShowSplash() bool {
	if _, seen := g.kv.Get(keySplashSeen); seen {
		return false
	}
	g.kv.Set(keySplashSeen, "1")
	return true
}
