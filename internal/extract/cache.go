// AngelaMos | 2026
// cache.go

package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

const cachePrefix = "extract:"

// Cache memoises extracted text in Redis keyed by the content hash, so a
// re-analysis of a stored document skips parsing. Redis failures degrade
// to direct extraction.
type Cache struct {
	rdb    *redis.Client
	next   TextSource
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(
	rdb *redis.Client,
	next TextSource,
	ttl time.Duration,
	logger *slog.Logger,
) *Cache {
	return &Cache{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		logger: logger,
	}
}

func CacheKey(fileType string, data []byte) string {
	return cachePrefix + fileType + ":" + core.ContentHash(data)
}

func (c *Cache) Text(
	ctx context.Context,
	fileType string,
	data []byte,
) (string, error) {
	key := CacheKey(fileType, data)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("extract cache read failed", "key", key, "error", err)
	}

	text, err := c.next.Text(ctx, fileType, data)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Warn("extract cache write failed", "key", key, "error", err)
	}

	return text, nil
}
