package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-portal/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestTokenStore_SaveLoadDelete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewTokenStore(client, "jwt_token")
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	raw := testutil.NewToken("alice").Build()
	require.NoError(t, store.Save(ctx, raw))

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, raw, got)

	stored, err := client.Get(ctx, DefaultPrefix+"jwt_token").Result()
	require.NoError(t, err)
	assert.Equal(t, raw, stored)

	require.NoError(t, store.Delete(ctx))
	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenStore_SaveReplaces(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewTokenStore(client, "jwt_token")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a.b.c"))
	require.NoError(t, store.Save(ctx, "d.e.f"))

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d.e.f", got)
}

func TestTokenStore_DeleteIsIdempotent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewTokenStoreWithPrefix(client, "test:", "slot")
	ctx := context.Background()

	assert.NoError(t, store.Delete(ctx))
	assert.NoError(t, store.Delete(ctx))
}

func TestTokenStore_SaveEmpty(t *testing.T) {
	store := NewTokenStore(nil, "jwt_token")
	err := store.Save(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token cannot be empty")
}
