// Package state keeps a history of completed artifacts in SQLite.
// The history is informational: skip decisions only ever look at the filesystem.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

var (
	dbMu   sync.Mutex
	db     *sql.DB
	dbPath string
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id           TEXT PRIMARY KEY,
	course_slug  TEXT NOT NULL,
	kind         TEXT NOT NULL,
	title        TEXT NOT NULL,
	dest_path    TEXT NOT NULL,
	bytes        INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER NOT NULL,
	time_taken   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_downloads_course ON downloads(course_slug);
CREATE INDEX IF NOT EXISTS idx_downloads_completed ON downloads(completed_at);
`

// Configure sets the database location. The database is opened lazily.
func Configure(path string) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil && path != dbPath {
		_ = db.Close()
		db = nil
	}
	dbPath = path
}

// GetDB returns the shared handle, opening and migrating it on first use.
func GetDB() (*sql.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db != nil {
		return db, nil
	}
	if dbPath == "" {
		return nil, errors.New("state database not configured")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// One writer; SQLite serialises anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrating state db: %w", err)
	}

	db = conn
	return db, nil
}

// CloseDB closes the shared handle if open.
func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		_ = db.Close()
		db = nil
	}
}
