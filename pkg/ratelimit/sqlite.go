package ratelimit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/database"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS rate_limits (
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		timestamps TEXT NOT NULL,
		daily_count INTEGER NOT NULL,
		last_reset_date TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (user_id, action)
	);

	CREATE INDEX IF NOT EXISTS idx_rate_limits_expires ON rate_limits(expires_at);
`

// SQLiteStore keeps records in the shared SQLite database. Updates run in immediate
// transactions so concurrent checks for the same user serialize.
type SQLiteStore struct {
	db *database.Database
}

// NewSQLiteStore creates the rate limit table if needed
func NewSQLiteStore(db *database.Database) (*SQLiteStore, error) {
	if err := db.ExecuteSchema(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create rate limit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Update implements Store
func (s *SQLiteStore) Update(ctx context.Context, key Key, fn func(*Info) error) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			info       Info
			stamps     string
			expiresAt  int64
			lastReset  string
			dailyCount int
		)
		err := tx.QueryRowContext(ctx, `
			SELECT timestamps, daily_count, last_reset_date, expires_at, version
			FROM rate_limits WHERE user_id = ? AND action = ?
		`, key.UserID, string(key.Action)).Scan(&stamps, &dailyCount, &lastReset, &expiresAt, &info.Version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load rate limit record: %w", err)
		default:
			if info.Timestamps, err = decodeTimestamps(stamps); err != nil {
				return err
			}
			info.DailyCount = dailyCount
			info.LastResetDate = lastReset
			info.ExpiresAt = time.UnixMilli(expiresAt)
		}

		if err := fn(&info); err != nil {
			return err
		}

		encoded, err := encodeTimestamps(info.Timestamps)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rate_limits (user_id, action, timestamps, daily_count, last_reset_date, expires_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, action) DO UPDATE SET
				timestamps = excluded.timestamps,
				daily_count = excluded.daily_count,
				last_reset_date = excluded.last_reset_date,
				expires_at = excluded.expires_at,
				version = excluded.version
		`, key.UserID, string(key.Action), encoded, info.DailyCount, info.LastResetDate,
			info.ExpiresAt.UnixMilli(), info.Version+1)
		if err != nil {
			return fmt.Errorf("failed to save rate limit record: %w", err)
		}
		return nil
	})
}

// CleanupExpired removes records whose ExpiresAt has passed
func (s *SQLiteStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx, `DELETE FROM rate_limits WHERE expires_at < ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limit records: %w", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeTimestamps(stamps []time.Time) (string, error) {
	millis := make([]int64, len(stamps))
	for i, ts := range stamps {
		millis[i] = ts.UnixMilli()
	}
	b, err := json.Marshal(millis)
	if err != nil {
		return "", fmt.Errorf("failed to encode timestamps: %w", err)
	}
	return string(b), nil
}

func decodeTimestamps(raw string) ([]time.Time, error) {
	var millis []int64
	if err := json.Unmarshal([]byte(raw), &millis); err != nil {
		return nil, fmt.Errorf("failed to decode timestamps: %w", err)
	}
	stamps := make([]time.Time, len(millis))
	for i, ms := range millis {
		stamps[i] = time.UnixMilli(ms)
	}
	return stamps, nil
}
