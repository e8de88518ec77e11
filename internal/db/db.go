package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/devctx.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.devctx.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.NewStoreUnavailable(fmt.Errorf("create base directory: %w", err))
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections).
	// Transactions begin IMMEDIATE: the write lock is taken up front, so
	// concurrent check-then-insert transactions queue on busy_timeout rather
	// than failing the deferred read-to-write upgrade with SQLITE_BUSY.
	dbPath := filepath.Join(baseDir, "devctx.db")
	dsn := dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStoreUnavailable(fmt.Errorf("open database: %w", err))
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, errors.NewStoreUnavailable(err)
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.NewStoreUnavailable(err)
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS projects (
		  id          TEXT PRIMARY KEY,
		  name        TEXT NOT NULL,
		  path        TEXT NOT NULL UNIQUE,
		  created_at  INTEGER NOT NULL,
		  last_active INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
		  id         TEXT PRIMARY KEY,
		  project_id TEXT NOT NULL REFERENCES projects(id),
		  started_at INTEGER NOT NULL,
		  ended_at   INTEGER,
		  status     TEXT NOT NULL,
		  start_ref  TEXT NOT NULL DEFAULT '',
		  end_ref    TEXT,
		  degraded   INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_project_started
		ON sessions(project_id, started_at DESC);

		CREATE INDEX IF NOT EXISTS idx_sessions_project_ended
		ON sessions(project_id, ended_at DESC)
		WHERE ended_at IS NOT NULL;

		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
		ON sessions(project_id)
		WHERE status = 'active';

		CREATE TABLE IF NOT EXISTS notes (
		  id         TEXT PRIMARY KEY,
		  session_id TEXT NOT NULL REFERENCES sessions(id),
		  created_at INTEGER NOT NULL,
		  text       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_session
		ON notes(session_id, created_at);

		CREATE TABLE IF NOT EXISTS file_changes (
		  session_id   TEXT NOT NULL REFERENCES sessions(id),
		  path         TEXT NOT NULL,
		  change_count INTEGER NOT NULL,
		  PRIMARY KEY (session_id, path)
		);

		CREATE TABLE IF NOT EXISTS summaries (
		  id           TEXT PRIMARY KEY,
		  session_id   TEXT NOT NULL UNIQUE REFERENCES sessions(id),
		  text         TEXT NOT NULL,
		  generated_by TEXT NOT NULL,
		  created_at   INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
