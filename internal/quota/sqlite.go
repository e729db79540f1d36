package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a single-node SQLite database. Every
// increment is one UPSERT statement, so atomicity comes from SQLite itself.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer connection serializes statements and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS quota_counters (
		user_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		raw_count INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, lesson_id)
	);
	CREATE INDEX IF NOT EXISTS idx_quota_expires ON quota_counters(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WithClock replaces the time source, for expiry tests.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

func (s *SQLiteStore) Count(ctx context.Context, key Key) (int64, error) {
	query := `SELECT raw_count FROM quota_counters WHERE user_id = ? AND lesson_id = ? AND expires_at > ?`

	var count int64
	err := s.db.QueryRowContext(ctx, query, key.UserID, key.LessonID, s.now().UnixMilli()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select quota counter: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Incr(ctx context.Context, key Key, ttl time.Duration) (int64, error) {
	query := `
	INSERT INTO quota_counters (user_id, lesson_id, raw_count, expires_at)
	VALUES (?, ?, 1, ?)
	ON CONFLICT(user_id, lesson_id) DO UPDATE SET
		raw_count = CASE WHEN quota_counters.expires_at <= ? THEN 1 ELSE quota_counters.raw_count + 1 END,
		expires_at = CASE WHEN quota_counters.expires_at <= ? THEN excluded.expires_at ELSE quota_counters.expires_at END
	RETURNING raw_count`

	now := s.now().UnixMilli()
	expiresAt := now + ttl.Milliseconds()

	var count int64
	if err := s.db.QueryRowContext(ctx, query, key.UserID, key.LessonID, expiresAt, now, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("upsert quota counter: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Decr(ctx context.Context, key Key) (int64, error) {
	query := `
	UPDATE quota_counters SET raw_count = raw_count - 1
	WHERE user_id = ? AND lesson_id = ? AND expires_at > ? AND raw_count > 0
	RETURNING raw_count`

	var count int64
	err := s.db.QueryRowContext(ctx, query, key.UserID, key.LessonID, s.now().UnixMilli()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Count(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("decrement quota counter: %w", err)
	}
	return count, nil
}

// Purge deletes rows whose retention window has passed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quota_counters WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge quota counters: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
