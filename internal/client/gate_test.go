package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chasmos/internal/model"
)

func TestGate_TokenWithoutProfileIsUnauthenticated(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set("auth_token", "tok123")

	gate := NewAuthGate(kv)
	require.False(t, gate.Authenticated())
}

func TestGate_ProfileWithoutTokenIsUnauthenticated(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set("auth_profile", `{"id":"u1","username":"alice"}`)

	gate := NewAuthGate(kv)
	require.False(t, gate.Authenticated())
}

func TestGate_LoginThenLogout(t *testing.T) {
	gate := NewAuthGate(NewMemoryKV())
	require.False(t, gate.Authenticated())

	require.NoError(t, gate.Login("tok123", model.UserPublic{ID: "u1", Username: "alice"}))
	require.True(t, gate.Authenticated())
	require.Equal(t, "tok123", gate.Token())
	require.Equal(t, "alice", gate.Profile().Username)

	gate.Logout()
	require.False(t, gate.Authenticated())
	require.Nil(t, gate.Profile())
}

func TestGate_CorruptProfileForcesUnauthenticated(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set("auth_token", "tok123")
	kv.Set("auth_profile", "{not json")

	gate := NewAuthGate(kv)
	require.False(t, gate.Authenticated())
}

func TestGate_SplashShownOncePerSession(t *testing.T) {
	gate := NewAuthGate(NewMemoryKV())
	require.True(t, gate.ShouldShowSplash())
	require.False(t, gate.ShouldShowSplash())
}
