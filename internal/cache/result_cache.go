package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/dealfinder/internal/models"
)

// cachedResult is the Redis value of one finished search.
type cachedResult struct {
	Query    string                 `json:"query"`
	Records  []models.ProductRecord `json:"records"`
	CachedAt time.Time              `json:"cachedAt"`
}

// ResultCache keeps finished, ranked result sets keyed by translated query so
// repeated searches skip the upstream and oracle calls.
type ResultCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewResultCache creates a new ResultCache.
func NewResultCache(redis *RedisClient, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{redis: redis, ttl: ttl}
}

func (c *ResultCache) key(query string) string {
	sum := sha1.Sum([]byte(query))
	return fmt.Sprintf("result:%s", hex.EncodeToString(sum[:]))
}

// GetResults returns the cached records for query.
func (c *ResultCache) GetResults(ctx context.Context, query string) ([]models.ProductRecord, bool) {
	raw, err := c.redis.Get(ctx, c.key(query))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Result cache read failed")
		}
		return nil, false
	}

	var data cachedResult
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data.Query != query || len(data.Records) == 0 {
		return nil, false
	}
	return data.Records, true
}

// SetResults stores records for query, logging failures.
func (c *ResultCache) SetResults(ctx context.Context, query string, records []models.ProductRecord) {
	if len(records) == 0 {
		return
	}
	payload, err := json.Marshal(cachedResult{Query: query, Records: records, CachedAt: time.Now()})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal result cache entry")
		return
	}
	if err := c.redis.Set(ctx, c.key(query), string(payload), c.ttl); err != nil {
		log.Warn().Err(err).Msg("Result cache write failed")
	}
}
