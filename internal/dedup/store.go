// Package dedup records processed platform update IDs so webhook
// redeliveries do not double-dispatch an event. It stores identifiers
// only, never message content.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed set of already-processed update IDs.
type Store struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

func NewStore(dbPath string, retention time.Duration, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	// modernc.org/sqlite takes pragmas as _pragma=name(value) pairs.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if retention <= 0 {
		retention = 48 * time.Hour
	}

	store := &Store{db: db, retention: retention, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_updates (
		platform   TEXT NOT NULL,
		update_id  INTEGER NOT NULL,
		seen_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (platform, update_id)
	);
	CREATE INDEX IF NOT EXISTS idx_seen_updates_at ON seen_updates(seen_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Seen reports whether the update was already processed and records it
// otherwise. The check and the record are a single INSERT so two
// concurrent deliveries of the same update cannot both pass.
func (s *Store) Seen(ctx context.Context, platform string, updateID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_updates (platform, update_id) VALUES (?, ?)`,
		platform, updateID,
	)
	if err != nil {
		return false, fmt.Errorf("record update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 0, nil
}

// Purge deletes records older than the retention window.
func (s *Store) Purge(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention).UTC()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_updates WHERE seen_at < ?`, cutoff.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("purged dedup records", "count", n)
	}
	return nil
}

// RunPurgeLoop purges expired records periodically until ctx is
// cancelled.
func (s *Store) RunPurgeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Purge(ctx); err != nil {
				s.logger.Warn("dedup purge failed", "err", err)
			}
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}
