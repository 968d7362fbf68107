package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TranslationCache keeps query translations in Redis.
type TranslationCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewTranslationCache creates a new TranslationCache.
func NewTranslationCache(redis *RedisClient, ttl time.Duration) *TranslationCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TranslationCache{redis: redis, ttl: ttl}
}

// key hashes the query so arbitrary text makes a bounded key.
func (c *TranslationCache) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("translate:%s", hex.EncodeToString(sum[:]))
}

// GetTranslation returns a cached translation.
func (c *TranslationCache) GetTranslation(ctx context.Context, text string) (string, bool) {
	val, err := c.redis.Get(ctx, c.key(text))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Translation cache read failed")
		}
		return "", false
	}
	return val, true
}

// SetTranslation stores a translation, logging failures.
func (c *TranslationCache) SetTranslation(ctx context.Context, text, translated string) {
	if err := c.redis.Set(ctx, c.key(text), translated, c.ttl); err != nil {
		log.Warn().Err(err).Msg("Translation cache write failed")
	}
}
