package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTaxonomyMissing means no cached taxonomy exists yet.
var ErrTaxonomyMissing = errors.New("category taxonomy not cached")

// TaxonomyStore persists the raw category taxonomy response.
type TaxonomyStore interface {
	// Load returns the cached body and when it was stored.
	Load(ctx context.Context) ([]byte, time.Time, error)
	Save(ctx context.Context, body []byte) error
}

// FileTaxonomyStore keeps the taxonomy in a JSON file; its mtime is the fetch time.
type FileTaxonomyStore struct {
	path string
}

func NewFileTaxonomyStore(path string) *FileTaxonomyStore {
	return &FileTaxonomyStore{path: path}
}

func (s *FileTaxonomyStore) Load(_ context.Context) ([]byte, time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, ErrTaxonomyMissing
		}
		return nil, time.Time{}, fmt.Errorf("stat taxonomy file: %w", err)
	}
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read taxonomy file: %w", err)
	}
	return body, info.ModTime(), nil
}

// Save writes through a temp file so readers never see a partial file.
func (s *FileTaxonomyStore) Save(_ context.Context, body []byte) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create taxonomy dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write taxonomy file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// RedisTaxonomyStore keeps the taxonomy under one key with a companion
// timestamp key, both expiring after ttl.
type RedisTaxonomyStore struct {
	redis *RedisClient
	ttl   time.Duration
}

func NewRedisTaxonomyStore(redis *RedisClient, ttl time.Duration) *RedisTaxonomyStore {
	return &RedisTaxonomyStore{redis: redis, ttl: ttl}
}

const (
	taxonomyKey        = "category:taxonomy"
	taxonomyFetchedKey = "category:taxonomy:fetched_at"
)

func (s *RedisTaxonomyStore) Load(ctx context.Context) ([]byte, time.Time, error) {
	body, err := s.redis.Get(ctx, taxonomyKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrTaxonomyMissing
		}
		return nil, time.Time{}, fmt.Errorf("get taxonomy: %w", err)
	}
	fetchedAt := time.Time{}
	if raw, err := s.redis.Get(ctx, taxonomyFetchedKey); err == nil {
		fetchedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return []byte(body), fetchedAt, nil
}

func (s *RedisTaxonomyStore) Save(ctx context.Context, body []byte) error {
	if err := s.redis.Set(ctx, taxonomyKey, string(body), s.ttl); err != nil {
		return fmt.Errorf("set taxonomy: %w", err)
	}
	return s.redis.Set(ctx, taxonomyFetchedKey, time.Now().UTC().Format(time.RFC3339Nano), s.ttl)
}
