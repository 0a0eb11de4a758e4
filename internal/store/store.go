package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/dt/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added idx_executions_ts for retention sweeps
const currentSchemaVersion = 1

// Layout names under the data directory.
const (
	IndexFile  = "index"
	RecordsDir = "records"
)

// Clock supplies wall-clock time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store owns the live index, the yearly archives, and all payload files
// under one data directory.
//
// Mutating operations (Save, Delete, Archive, Retention, Rebuild, CleanAll)
// are serialized by an in-process mutex. There is no cross-process locking:
// two dt processes writing the same data directory at the same instant
// are not coordinated.
type Store struct {
	dir string
	db  *sql.DB

	mu          sync.Mutex
	clock       Clock
	ids         record.IDGenerator
	autoArchive bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator overrides execution ID generation.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithAutoArchive enables year-boundary archival on Save.
func WithAutoArchive(enabled bool) Option {
	return func(s *Store) { s.autoArchive = enabled }
}

// Open creates or opens the store rooted at dataDir.
//
// The data directory and records/ are created if missing. The index is a
// SQLite database configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// An index file that is not a valid database yields a Corrupt error; the
// payload files are left untouched so Rebuild can recover from them.
func Open(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, RecordsDir), 0o755); err != nil {
		return nil, record.IO("open store", dataDir, err)
	}

	indexPath := filepath.Join(dataDir, IndexFile)
	db, err := sql.Open("sqlite3", indexPath)
	if err != nil {
		return nil, record.IO("open index", indexPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classifyOpenError(indexPath, err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, classifyOpenError(indexPath, err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, classifyOpenError(indexPath, err)
	}

	s := &Store{
		dir:         dataDir,
		db:          db,
		clock:       systemClock{},
		ids:         record.UUIDv7Generator{},
		autoArchive: false,
	}
	for _, opt := range opts {
		opt(s)
	}

	slog.Debug("store opened", "dir", dataDir)
	return s, nil
}

// Close flushes and closes the index.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fold the WAL back into the main file so the index is self-contained.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("index checkpoint failed", "error", err)
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// now returns the current time in UTC.
func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the timestamp index used by retention sweeps.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_executions_ts ON executions(ts)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// classifyOpenError reports an unreadable index as Corrupt and anything
// else as an IoError.
func classifyOpenError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return record.Corrupt("open index", path, err)
		}
	}
	return record.IO("open index", path, err)
}

// getSetting reads a settings value. Returns "" when absent.
func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// setSetting upserts a settings value.
func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
