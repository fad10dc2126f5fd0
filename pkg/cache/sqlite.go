package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS recipe_cache (
		key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		recipe TEXT NOT NULL,
		provenance TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recipe_cache_updated ON recipe_cache(updated_at);
`

// SQLiteStore keeps entries in the shared SQLite database. Times are unix milliseconds.
type SQLiteStore struct {
	db *database.Database
}

// NewSQLiteStore creates the cache table if needed
func NewSQLiteStore(db *database.Database) (*SQLiteStore, error) {
	if err := db.ExecuteSchema(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Name implements Store
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, key string) (*recipe.CacheEntry, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT key, url, recipe, provenance, created_at, updated_at
		FROM recipe_cache WHERE key = ?
	`, key)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry, nil
}

// Put implements Store. The original creation time survives overwrites.
func (s *SQLiteStore) Put(ctx context.Context, entry recipe.CacheEntry) error {
	payload, err := json.Marshal(entry.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO recipe_cache (key, url, recipe, provenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			recipe = excluded.recipe,
			provenance = excluded.provenance,
			updated_at = excluded.updated_at
	`, entry.Key, entry.URL, string(payload), string(entry.Provenance),
		entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// List implements Store
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]recipe.CacheEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT key, url, recipe, provenance, created_at, updated_at
		FROM recipe_cache
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []recipe.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Count implements Store
func (s *SQLiteStore) Count(ctx context.Context, freshAfter time.Time) (int64, int64, error) {
	var total, fresh int64
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN updated_at >= ? THEN 1 ELSE 0 END), 0)
		FROM recipe_cache
	`, freshAfter.UnixMilli()).Scan(&total, &fresh)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return total, fresh, nil
}

// DeleteOlderThan implements Store
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx, `DELETE FROM recipe_cache WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*recipe.CacheEntry, error) {
	var (
		entry                recipe.CacheEntry
		payload, provenance  string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&entry.Key, &entry.URL, &payload, &provenance, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &entry.Recipe); err != nil {
		return nil, fmt.Errorf("failed to decode cached recipe: %w", err)
	}
	entry.Provenance = recipe.Provenance(provenance)
	entry.CreatedAt = time.UnixMilli(createdAt)
	entry.UpdatedAt = time.UnixMilli(updatedAt)
	return &entry, nil
}
