// Package cache stores finished recipes keyed by their normalized source URL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/lepinkainen/recipe-forge/pkg/metrics"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// DefaultTTL is how long a cached recipe stays fresh
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotFound is returned by stores when a key is absent
var ErrNotFound = errors.New("cache entry not found")

// Store persists cache entries. Freshness is decided by Cache at read time.
type Store interface {
	Get(ctx context.Context, key string) (*recipe.CacheEntry, error)
	Put(ctx context.Context, entry recipe.CacheEntry) error
	List(ctx context.Context, limit int) ([]recipe.CacheEntry, error)
	Count(ctx context.Context, freshAfter time.Time) (total, fresh int64, err error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Name() string
	Close() error
}

// Stats summarizes cache contents
type Stats struct {
	Backend string `json:"backend"`
	Total   int64  `json:"total"`
	Fresh   int64  `json:"fresh"`
	Expired int64  `json:"expired"`
}

// Cache is the recipe cache front end
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache over store. A zero ttl uses DefaultTTL.
func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// NormalizeURL reduces a URL to scheme, lowercased host and path, dropping the query,
// the fragment and any trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host) + strings.TrimRight(u.EscapedPath(), "/"), nil
}

// Key returns the cache key for rawURL: the xxhash64 of the normalized URL in hex
func Key(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized)), nil
}

// Get returns a fresh entry for rawURL. Errors are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, rawURL string) (*recipe.CacheEntry, bool) {
	key, err := Key(rawURL)
	if err != nil {
		slog.Debug("Cache lookup skipped", "url", rawURL, "error", err)
		return nil, false
	}

	entry, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		slog.Warn("Cache read failed", "url", rawURL, "backend", c.store.Name(), "error", err)
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	if entry.Expired(c.now(), c.ttl) {
		slog.Debug("Cache entry expired", "url", rawURL, "updated_at", entry.UpdatedAt)
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry, true
}

// Put stores r for rawURL, overwriting any previous entry. Errors are logged and swallowed.
func (c *Cache) Put(ctx context.Context, rawURL string, r recipe.ScrapedRecipe, provenance recipe.Provenance) {
	key, err := Key(rawURL)
	if err != nil {
		slog.Warn("Cache write skipped", "url", rawURL, "error", err)
		return
	}

	now := c.now()
	entry := recipe.CacheEntry{
		Key:        key,
		URL:        rawURL,
		Recipe:     r,
		Provenance: provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		slog.Warn("Cache write failed", "url", rawURL, "backend", c.store.Name(), "error", err)
		return
	}
	slog.Debug("Recipe cached", "url", rawURL, "key", key, "provenance", provenance)
}

// List returns up to limit entries, most recently updated first
func (c *Cache) List(ctx context.Context, limit int) ([]recipe.CacheEntry, error) {
	entries, err := c.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return entries, nil
}

// Stats counts fresh and expired entries
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	total, fresh, err := c.store.Count(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return Stats{
		Backend: c.store.Name(),
		Total:   total,
		Fresh:   fresh,
		Expired: total - fresh,
	}, nil
}

// CleanupExpired deletes entries older than the TTL and returns how many were removed
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := c.store.DeleteOlderThan(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}
	if removed > 0 {
		slog.Debug("Cleaned up expired cache entries", "backend", c.store.Name(), "count", removed)
	}
	return removed, nil
}

// Close closes the underlying store
func (c *Cache) Close() error {
	return c.store.Close()
}
