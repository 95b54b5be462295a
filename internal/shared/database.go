package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// MemoryDatabase is the path that opens a private in-memory database.
const MemoryDatabase = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path using driver ("sqlite3" or "sqlite").
//
// The path can be ":memory:" for an in-memory database; the pool is then pinned to a single connection
// because every new connection would otherwise see its own empty database.
func NewDatabase(driver, path string) (*sql.DB, error) {
	if driver == "" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == MemoryDatabase {
		ConfigureDatabase(db, 1, 1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// OpenConfigured opens the database described by cfg, applies pool settings and runs pending migrations.
func OpenConfigured(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := NewDatabase(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, err
	}

	if cfg.Path != MemoryDatabase && cfg.MaxOpenConns > 0 {
		ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
