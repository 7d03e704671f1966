package repository

import (
	"context"
	"testing"
	"time"

	"pretgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		session := &models.AdminSession{Token: "abc", ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, store.SaveSession(ctx, session))

		got, err := store.GetSession(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, session, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		got, err := store.GetSession(ctx, "abc")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NotContains(t, store.sessions, "abc")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, &models.AdminSession{Token: "x", ExpiresAt: now.Add(time.Hour)}))
		require.NoError(t, store.DeleteSession(ctx, "x"))
		got, _ := store.GetSession(ctx, "x")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := store.CheckRateLimit(ctx, "login", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, "login", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, "login", 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second)
		allowed, _ = store.CheckRateLimit(ctx, "login", 2, time.Second)
		assert.True(t, allowed)
	})
}
