package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// RedisKeyPrefix namespaces cache keys in Redis
const RedisKeyPrefix = "recipe-cache:"

// RedisConfig configures the Redis backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL is set on keys for housekeeping; freshness is still decided at read time
	TTL time.Duration
}

// RedisStore keeps entries as JSON values in Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Name implements Store
func (s *RedisStore) Name() string {
	return "redis"
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (*recipe.CacheEntry, error) {
	raw, err := s.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry recipe.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

// Put implements Store. The original creation time survives overwrites.
func (s *RedisStore) Put(ctx context.Context, entry recipe.CacheEntry) error {
	if existing, err := s.Get(ctx, entry.Key); err == nil {
		entry.CreatedAt = existing.CreatedAt
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, RedisKeyPrefix+entry.Key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// all loads every entry under the prefix
func (s *RedisStore) all(ctx context.Context) ([]recipe.CacheEntry, error) {
	var entries []recipe.CacheEntry
	iter := s.client.Scan(ctx, 0, RedisKeyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry recipe.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// List implements Store
func (s *RedisStore) List(ctx context.Context, limit int) ([]recipe.CacheEntry, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Count implements Store
func (s *RedisStore) Count(ctx context.Context, freshAfter time.Time) (int64, int64, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return 0, 0, err
	}
	var fresh int64
	for _, e := range entries {
		if !e.UpdatedAt.Before(freshAfter) {
			fresh++
		}
	}
	return int64(len(entries)), fresh, nil
}

// DeleteOlderThan implements Store
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, e := range entries {
		if e.UpdatedAt.Before(cutoff) {
			stale = append(stale, RedisKeyPrefix+e.Key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	removed, err := s.client.Del(ctx, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return removed, nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
