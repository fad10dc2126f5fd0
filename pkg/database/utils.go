package database

import (
	"fmt"
	"os"
)

// GetDatabaseSize returns the size of the database file in bytes
func GetDatabaseSize(dbPath string) (int64, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}

	return info.Size(), nil
}

// VacuumDatabase runs VACUUM on the database to reclaim space
func VacuumDatabase(db *Database) error {
	_, err := db.DB().Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

// Info describes an open database
type Info struct {
	SQLiteVersion string `json:"sqliteVersion"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	TableCount    int    `json:"tableCount"`
}

// GetDatabaseInfo returns information about the database
func GetDatabaseInfo(db *Database) (Info, error) {
	var info Info

	err := db.DB().QueryRow("SELECT sqlite_version()").Scan(&info.SQLiteVersion)
	if err != nil {
		return info, fmt.Errorf("failed to get SQLite version: %w", err)
	}

	if size, err := GetDatabaseSize(db.Path()); err == nil {
		info.FileSizeBytes = size
	}

	err = db.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&info.TableCount)
	if err != nil {
		return info, fmt.Errorf("failed to get table count: %w", err)
	}

	return info, nil
}
