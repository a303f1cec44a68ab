package service

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/pkg/config"
)

func TestMemoryRevocationList(t *testing.T) {
	rl := NewMemoryRevocationList(config.RevocationConfig{}, zap.NewNop())
	ctx := t.Context()

	revoked, err := rl.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, rl.Revoke(ctx, "a", time.Now().Add(time.Hour)))
	revoked, err = rl.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.Error(t, rl.Revoke(ctx, "", time.Now().Add(time.Hour)))
}

func TestMemoryRevocationList_Cleanup(t *testing.T) {
	rl := NewMemoryRevocationList(config.RevocationConfig{}, zap.NewNop())
	ctx := t.Context()
	now := time.Now()

	require.NoError(t, rl.Revoke(ctx, "expired", now.Add(-time.Second)))
	require.NoError(t, rl.Revoke(ctx, "live", now.Add(time.Hour)))

	// an expired entry is already ignored before cleanup runs
	revoked, err := rl.IsRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)

	rl.cleanup(now)
	assert.Equal(t, 1, rl.Count())
}

func TestMemoryRevocationList_StartStop(t *testing.T) {
	rl := NewMemoryRevocationList(config.RevocationConfig{CleanupIntervalSeconds: 1}, zap.NewNop())
	rl.Start()
	rl.Stop()
	// a second Stop must not panic
	rl.Stop()
}

func TestNewRevocationList(t *testing.T) {
	rl, err := NewRevocationList(config.RevocationConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryRevocationList{}, rl)

	_, err = NewRevocationList(config.RevocationConfig{Type: "etcd"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisRevocationList(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rl, err := NewRedisRevocationList(config.RevocationConfig{
		Type:  "redis",
		Redis: config.RedisConfig{Address: addr, KeyPrefix: "xcafe:test:" + uuid.NewString() + ":"},
	}, zap.NewNop())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer rl.Stop()
	ctx := t.Context()

	jti := uuid.NewString()
	revoked, err := rl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, rl.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = rl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := rl.client.TTL(ctx, rl.key(jti)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	// already-expired credentials are not stored
	stale := uuid.NewString()
	require.NoError(t, rl.Revoke(ctx, stale, time.Now().Add(-time.Minute)))
	revoked, err = rl.IsRevoked(ctx, stale)
	require.NoError(t, err)
	assert.False(t, revoked)
}
