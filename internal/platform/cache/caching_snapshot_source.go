// Package cache provides caching implementations for snapshot sources.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock_board/internal/feature/ranking/domain/entity"
	"stock_board/internal/feature/ranking/usecase"
)

// TTLFunc returns how long a snapshot fetched at now stays fresh.
type TTLFunc func(now time.Time) time.Duration

// CachingSnapshotSource decorates a SnapshotSource with Redis caching.
// Ranking snapshots are short-lived, so the TTL follows market sessions.
type CachingSnapshotSource struct {
	inner     usecase.SnapshotSource
	rdb       *redis.Client
	ttl       TTLFunc
	namespace string
	exchange  string
	now       func() time.Time
	logger    *zap.Logger
}

var _ usecase.SnapshotSource = (*CachingSnapshotSource)(nil)

// NewCachingSnapshotSource decorates a SnapshotSource with Redis caching.
// If ttl is nil, SessionTTL is used. If namespace is empty, it uses "ranking".
// exchange is part of the key because overseas results depend on it.
func NewCachingSnapshotSource(rdb *redis.Client, ttl TTLFunc, inner usecase.SnapshotSource, namespace, exchange string, logger *zap.Logger) *CachingSnapshotSource {
	if ttl == nil {
		ttl = SessionTTL
	}
	if namespace == "" {
		namespace = "ranking"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingSnapshotSource{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		exchange:  exchange,
		now:       time.Now,
		logger:    logger,
	}
}

// FetchSnapshot returns a cached snapshot when available, otherwise fetches from the inner source.
func (c *CachingSnapshotSource) FetchSnapshot(ctx context.Context, filter entity.MarketFilter, mode entity.SortMode) ([]entity.Quote, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.FetchSnapshot(ctx, filter, mode)
	}

	key := c.cacheKey(filter, mode)

	// 1) Check cache
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil && len(b) > 0:
		var out []entity.Quote
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		c.logger.Warn("deleting corrupted snapshot cache entry", zap.String("key", key))
		_ = c.rdb.Del(ctx, key).Err()
	case err != nil && err != redis.Nil:
		c.logger.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
	}

	// 2) Fallback to the upstream API
	out, err := c.inner.FetchSnapshot(ctx, filter, mode)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl(c.now())).Err(); err != nil {
			c.logger.Debug("snapshot cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return out, nil
}

// cacheKey generates a cache key for a specific selection.
func (c *CachingSnapshotSource) cacheKey(filter entity.MarketFilter, mode entity.SortMode) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		c.namespace,
		safe(string(filter)),
		safe(string(mode)),
		safe(c.exchange),
	)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
