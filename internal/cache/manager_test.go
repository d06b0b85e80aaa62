package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_ConnectionFailure(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	// prefix applied and default TTL used
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))
}

func TestManager_MissAndExpiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	_, err := manager.Get(ctx, "absent")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, manager.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err = manager.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
}

// =============================================================================
// 🧪 CapabilityCache 测试
// =============================================================================

func TestCapabilityCache_RoundTrip(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()
	c := NewCapabilityCache(manager)

	_, ok := c.Get(ctx, "search_cio:abc")
	assert.False(t, ok)

	c.Set(ctx, "search_cio:abc", json.RawMessage(`{"results":[]}`), 30*time.Minute)

	got, ok := c.Get(ctx, "search_cio:abc")
	require.True(t, ok)
	assert.JSONEq(t, `{"results":[]}`, string(got))
	assert.Equal(t, 30*time.Minute, mr.TTL("test:search_cio:abc"))
}

func TestCapabilityCache_DegradesWhenRedisDown(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()
	c := NewCapabilityCache(manager)

	require.NoError(t, mr.Set("test:corrupt", "not json"))
	_, ok := c.Get(ctx, "corrupt")
	assert.False(t, ok)

	mr.Close()
	assert.NotPanics(t, func() {
		c.Set(ctx, "k", json.RawMessage(`1`), time.Minute)
		_, ok = c.Get(ctx, "k")
	})
	assert.False(t, ok)
}

func TestConfigFromRedis(t *testing.T) {
	cfg := ConfigFromRedis(config.RedisConfig{
		Addr:     "cache.internal:6380",
		Password: "secret",
		DB:       2,
		PoolSize: 25,
		TLS:      true,
	}, 5*time.Minute)

	assert.Equal(t, "cache.internal:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 25, cfg.PoolSize)
	assert.Equal(t, DefaultConfig().MinIdleConns, cfg.MinIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, "moneta:capability:", cfg.KeyPrefix)
	assert.True(t, cfg.TLS)

	assert.Equal(t, DefaultConfig().DefaultTTL, ConfigFromRedis(config.RedisConfig{}, 0).DefaultTTL)
}
