package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfileRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	got, err := c.GetProfile(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, c.SetProfile(ctx, "s1", `{"id":"u1"}`))
	got, err = c.GetProfile(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, `{"id":"u1"}`, got)

	require.NoError(t, c.DeleteProfile(ctx, "s1"))
	got, err = c.GetProfile(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoginRateLimit(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := c.CheckLoginRateLimit(ctx, "a@b.c")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i)
	}
	ok, err := c.CheckLoginRateLimit(ctx, "a@b.c")
	require.NoError(t, err)
	require.False(t, ok)

	// Другой ключ не задет.
	ok, err = c.CheckLoginRateLimit(ctx, "x@y.z")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFlags(t *testing.T) {
	c := New()
	ctx := context.Background()

	v, err := c.GetFlag(ctx, "u1", "sound_muted")
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, c.SetFlag(ctx, "u1", "sound_muted", "1"))
	v, err = c.GetFlag(ctx, "u1", "sound_muted")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}
