package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(Config{Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.ExecuteSchema(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("ExecuteSchema() error = %v", err)
	}
	return db
}

func countItems(t *testing.T, db *Database) int {
	t.Helper()
	var n int
	if err := db.DB().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestTransaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (name) VALUES (?)`, "kept")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}

	boom := errors.New("boom")
	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (name) VALUES (?)`, "rolled back"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() error = %v, expected %v", err, boom)
	}

	if got := countItems(t, db); got != 1 {
		t.Errorf("expected 1 committed row, got %d", got)
	}
}

func TestTransactionPanicRollsBack(t *testing.T) {
	db := openTestDB(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = db.Transaction(context.Background(), func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO items (name) VALUES (?)`, "never")
			panic("strategy exploded")
		})
	}()

	if got := countItems(t, db); got != 0 {
		t.Errorf("expected rollback after panic, got %d rows", got)
	}
}

func TestNewDatabaseSharesConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	first, err := NewDatabase(Config{Path: path})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	second, err := NewDatabase(Config{Path: path})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	if first != second {
		t.Fatal("expected the same handle for the same path")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := second.DB().Ping(); err != nil {
		t.Errorf("connection closed while still referenced: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if second.DB() != nil {
		t.Error("expected connection released after last Close")
	}
}

func TestGetDatabaseInfo(t *testing.T) {
	db := openTestDB(t)

	info, err := GetDatabaseInfo(db)
	if err != nil {
		t.Fatalf("GetDatabaseInfo() error = %v", err)
	}
	if info.SQLiteVersion == "" {
		t.Error("expected a SQLite version")
	}
	if info.TableCount != 1 {
		t.Errorf("TableCount = %d, expected 1", info.TableCount)
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes = %d, expected a positive size", info.FileSizeBytes)
	}
}

func TestGetDatabaseSize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "small.db")
	if err := os.WriteFile(file, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	size, err := GetDatabaseSize(file)
	if err != nil || size != 10 {
		t.Errorf("GetDatabaseSize() = %d, %v; expected 10, nil", size, err)
	}

	if _, err := GetDatabaseSize(filepath.Join(dir, "missing.db")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestDSN(t *testing.T) {
	got := dsn(Config{Path: "/tmp/x.db", BusyTimeout: DefaultConfig().BusyTimeout})
	for _, want := range []string{"/tmp/x.db?", "_txlock=immediate", "busy_timeout%285000%29"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn() = %q, missing %q", got, want)
		}
	}
}
