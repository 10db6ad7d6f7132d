package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadPush_Defaults(t *testing.T) {
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("REDIS_URL", "")

	cfg := LoadPush()

	require.Equal(t, ":8082", cfg.ServerAddr)
	require.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	require.Equal(t, "chasmos-push", cfg.VAPIDSubscriber)
	require.Equal(t, 10, cfg.MaxSubsPerUser)
	require.Equal(t, 30*24*time.Hour, cfg.SubscriptionTTL)
}

func TestLoadPush_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("PUSH_MAX_SUBS_PER_USER", "3")
	t.Setenv("PUSH_SUBSCRIPTION_TTL_DAYS", "7")
	t.Setenv("PUSH_VAPID_SUBSCRIBER", "ops@example.com")

	cfg := LoadPush()

	require.Equal(t, ":9090", cfg.ServerAddr)
	require.Equal(t, 3, cfg.MaxSubsPerUser)
	require.Equal(t, 7*24*time.Hour, cfg.SubscriptionTTL)
	require.Equal(t, "ops@example.com", cfg.VAPIDSubscriber)
}

func TestLoadPush_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PUSH_MAX_SUBS_PER_USER", "-1")
	t.Setenv("PUSH_SUBSCRIPTION_TTL_DAYS", "zero")

	cfg := LoadPush()

	require.Equal(t, 10, cfg.MaxSubsPerUser)
	require.Equal(t, 30*24*time.Hour, cfg.SubscriptionTTL)
}
