package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// CapabilityCache stores capability results as raw JSON in Redis.
// Cache failures degrade to misses; a call never fails because Redis is down.
type CapabilityCache struct {
	m      *Manager
	logger *zap.Logger
}

// NewCapabilityCache wraps a Manager for the tool executor.
func NewCapabilityCache(m *Manager) *CapabilityCache {
	return &CapabilityCache{m: m, logger: m.logger.With(zap.String("cache", "capability"))}
}

// Get returns the cached result for key.
func (c *CapabilityCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	val, err := c.m.Get(ctx, key)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("capability cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if !json.Valid([]byte(val)) {
		return nil, false
	}
	return json.RawMessage(val), true
}

// Set stores value under key for ttl.
func (c *CapabilityCache) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) {
	if err := c.m.Set(ctx, key, string(value), ttl); err != nil {
		c.logger.Warn("capability cache write failed", zap.Error(err))
	}
}
