package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "rentals:revoked:abc", Key("revoked", "abc"))
}

func TestRedisRevocationStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis-backed test")
	}
	client, err := ConnectRedis(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer DisconnectRedis(client)

	store := NewRedisRevocationStore(client)
	ctx := context.Background()
	jti := uuid.NewString()

	revoked, err := store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, revokedKey(jti)).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestRedisRevocationStore_ExpiredTokenIsNoop(t *testing.T) {
	store := &RedisRevocationStore{now: time.Now}
	// No client needed: an already expired token never reaches Redis.
	assert.NoError(t, store.Revoke(context.Background(), "jti", time.Now().Add(-time.Second)))
	assert.Error(t, store.Revoke(context.Background(), "", time.Now().Add(time.Minute)))
}
