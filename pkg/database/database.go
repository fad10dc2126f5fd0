// Package database wraps the shared SQLite handle used by the cache and rate limit stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/lepinkainen/recipe-forge/pkg/filesystem"
)

var (
	// dbCache stores active database connections, keyed by path
	dbCache = make(map[string]*Database)
	// cacheMutex protects the dbCache
	cacheMutex = &sync.Mutex{}
)

// Database represents a thread-safe, reference counted database connection
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	refs   int
}

// Config holds database configuration
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		Path:        "recipe-forge.db",
		BusyTimeout: 5 * time.Second,
	}
}

// dsn builds the driver connection string. Every write transaction takes SQLite's reserved
// lock at BEGIN (_txlock=immediate) and the pragmas apply to each pooled connection.
func dsn(config Config) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "temp_store(memory)")

	return config.Path + "?" + params.Encode()
}

// NewDatabase opens (or reuses) the SQLite database at config.Path
func NewDatabase(config Config) (*Database, error) {
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = DefaultConfig().BusyTimeout
	}

	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	// If a connection for this path already exists, share it
	if db, ok := dbCache[config.Path]; ok {
		db.refs++
		return db, nil
	}

	if err := filesystem.EnsureDirectoryExists(config.Path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:     db,
		dbPath: config.Path,
		refs:   1,
	}
	dbCache[config.Path] = database

	slog.Debug("Database opened", "path", config.Path)
	return database, nil
}

// Close releases this reference; the connection closes with the last one
func (db *Database) Close() error {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	db.refs--
	if db.refs > 0 {
		return nil
	}
	delete(dbCache, db.dbPath)

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db != nil {
		err := db.db.Close()
		db.db = nil
		return err
	}
	return nil
}

// DB returns the underlying sql.DB instance (thread-safe)
func (db *Database) DB() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db
}

// Path returns the database file path
func (db *Database) Path() string {
	return db.dbPath
}

// ExecuteSchema executes a schema statement
func (db *Database) ExecuteSchema(schema string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.db.Exec(schema)
	return err
}

// Transaction executes fn within an immediate transaction. Concurrent writers, including
// other processes sharing the file, serialize on SQLite's reserved lock.
func (db *Database) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				slog.Error("Failed to rollback transaction", "error", rollbackErr)
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.Error("Failed to rollback transaction", "error", rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
