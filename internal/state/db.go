// Package state provides SQLite-based persistence for Kairo.
// It holds the chat hierarchy (chats, runs, overview tasks, subtasks) and the
// chat message log, either globally (~/.local/share/kairo/kairo.db) or per
// project (.kairo/state.db).
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by OpenWithDriver.
const (
	// DriverModernc is the pure-Go SQLite driver. It is the default.
	DriverModernc = "sqlite"
	// DriverCGO is the cgo-based mattn/go-sqlite3 driver.
	DriverCGO = "sqlite3"
)

var (
	// ErrNotFound is returned when an update targets a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTerminalStatus is returned when an update would move an item out of
	// a terminal status.
	ErrTerminalStatus = errors.New("status is terminal")
	// ErrRunInProgress is returned when a chat already has a live run.
	ErrRunInProgress = errors.New("a run is already in progress for this chat")
	// ErrChatDeleted is returned when starting work in a deleted chat.
	ErrChatDeleted = errors.New("chat has been deleted")
)

// DB wraps an SQLite database connection with Kairo-specific operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// GlobalDBPath returns the path to the global Kairo database.
func GlobalDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "kairo", "kairo.db")
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".kairo", "state.db")
}

// Open opens an SQLite database at the given path using the default driver.
func Open(path string) (*DB, error) {
	return OpenWithDriver(DriverModernc, path)
}

// OpenWithDriver opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func OpenWithDriver(driver, path string) (*DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCGO:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &DB{
		conn:   conn,
		path:   path,
		driver: driver,
	}, nil
}

// OpenProject opens the project-local database with the given driver.
func OpenProject(driver, projectRoot string) (*DB, error) {
	return OpenWithDriver(driver, ProjectDBPath(projectRoot))
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the name of the SQL driver in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Chats},
		{2, migrationV2Runs},
		{3, migrationV3OverviewTasks},
		{4, migrationV4Subtasks},
		{5, migrationV5Messages},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Chats = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	last_message_at DATETIME,
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_status ON chats(status);
`

const migrationV2Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id),
	request TEXT NOT NULL,
	pid INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL DEFAULT 'planning',
	summary TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_chat_id ON runs(chat_id);
CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
`

const migrationV3OverviewTasks = `
CREATE TABLE IF NOT EXISTS overview_tasks (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id),
	run_id TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	reason TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_overview_tasks_chat_ordinal ON overview_tasks(chat_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_overview_tasks_run_id ON overview_tasks(run_id);
`

const migrationV4Subtasks = `
CREATE TABLE IF NOT EXISTS subtasks (
	id TEXT PRIMARY KEY,
	overview_task_id TEXT NOT NULL REFERENCES overview_tasks(id),
	ordinal INTEGER NOT NULL,
	position INTEGER NOT NULL,
	operation TEXT NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	explanation TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	result TEXT,
	error TEXT,
	reason TEXT,
	attempts INTEGER NOT NULL DEFAULT 0,
	fallback INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subtasks_task_position ON subtasks(overview_task_id, position);
`

const migrationV5Messages = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id),
	role TEXT NOT NULL,
	variant TEXT NOT NULL DEFAULT 'text',
	content TEXT NOT NULL DEFAULT '',
	payload TEXT,
	live_key TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_live ON messages(chat_id, live_key);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// timeLayout is RFC3339 with fixed-width nanoseconds so stored values sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := parseTime(s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
