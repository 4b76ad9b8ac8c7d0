// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/pkg/types"
)

// cacheKeyPrefix namespaces source-cache keys in Redis.
const cacheKeyPrefix = "sources:"

// defaultCacheTTL is how long validated source sets live (7 days).
const defaultCacheTTL = 7 * 24 * time.Hour

// cachePayload is the versioned cache document. Older deployments stored a
// bare JSON array of sources; Get degrades gracefully when it finds one.
type cachePayload struct {
	Version          int            `json:"version"`
	CachedAt         time.Time      `json:"cached_at"`
	ValidationMethod string         `json:"validation_method"`
	Sources          []types.Source `json:"sources"`
}

// Cache stores validated source sets in Redis keyed by normalized topic.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a source cache backed by Redis.
func NewCache(cfg types.CacheConfig, logger *zap.Logger) *Cache {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB}),
		ttl:    ttl,
		logger: logger,
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached source set for a topic. A malformed payload is a
// cache miss, never an error: stale or foreign data must not abort a run.
// The legacy flag marks a bare-list payload written before the versioned
// envelope existed; those entries predate composite scoring, so callers
// must rerank them before use.
func (c *Cache) Get(ctx context.Context, topic string) (sources []types.Source, legacy, ok bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(topic)).Bytes()
	if err == redis.Nil {
		return nil, false, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("topic", topic), zap.Error(err))
		return nil, false, false
	}

	var payload cachePayload
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Sources) > 0 {
		return payload.Sources, false, true
	}

	// Legacy format: a bare list of sources with no metadata envelope.
	var bare []types.Source
	if err := json.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		c.logger.Debug("cache payload in legacy list format", zap.String("topic", topic))
		return bare, true, true
	}

	c.logger.Warn("cache payload format mismatch, treating as miss", zap.String("topic", topic))
	return nil, false, false
}

// Set stores a validated source set with the configured TTL. Write
// failures are logged and swallowed; the cache is an optimization, not a
// dependency.
func (c *Cache) Set(ctx context.Context, topic string, sources []types.Source, validationMethod string) {
	payload := cachePayload{
		Version:          1,
		CachedAt:         time.Now().UTC(),
		ValidationMethod: validationMethod,
		Sources:          sources,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(topic), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("topic", topic), zap.Error(err))
	}
}

// cacheKey returns the Redis key for a topic: lowercased with whitespace
// collapsed, so trivially different spellings share an entry.
func cacheKey(topic string) string {
	return cacheKeyPrefix + NormalizeTopic(topic)
}

// NormalizeTopic lowercases a topic and collapses internal whitespace.
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), " ")
}
