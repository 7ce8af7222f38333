package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"homescout/models"
)

// SQLiteWriter persists export runs to a local SQLite file.
type SQLiteWriter struct {
	db  *sql.DB
	sql *sqlExporter
}

func NewSQLiteWriter(ctx context.Context, path string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}

	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	sw := &SQLiteWriter{db: db, sql: &sqlExporter{db: db, placeholder: questionPlaceholder}}
	if err := sw.sql.migrate(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sw, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS home_listings (
		run_id           TEXT    NOT NULL,
		reference_number INTEGER NOT NULL,
		address          TEXT    NOT NULL,
		price            INTEGER NOT NULL,
		bedrooms         INTEGER NOT NULL,
		bathrooms        REAL    NOT NULL,
		square_feet      INTEGER NOT NULL,
		created_at       TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, reference_number)
	)`,
	`CREATE TABLE IF NOT EXISTS home_distances (
		run_id           TEXT    NOT NULL,
		reference_number INTEGER NOT NULL,
		destination      TEXT    NOT NULL,
		meters           INTEGER,
		PRIMARY KEY (run_id, reference_number, destination)
	)`,
	`CREATE TABLE IF NOT EXISTS home_constants (
		run_id TEXT NOT NULL,
		name   TEXT NOT NULL,
		meters INTEGER,
		PRIMARY KEY (run_id, name)
	)`,
}

// Stage inserts the whole run in one transaction left open until Commit.
func (sw *SQLiteWriter) Stage(ctx context.Context, s *Snapshot) (Staged, error) {
	st, err := sw.sql.stage(ctx, "sqlite", s)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (sw *SQLiteWriter) WriteExport(ctx context.Context, s *Snapshot) error {
	return WriteAll(ctx, s, sw)
}

func (sw *SQLiteWriter) FetchDistances(ctx context.Context, runID string) ([]models.DistanceRecord, error) {
	recs, err := sw.sql.loadDistances(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return recs, nil
}

func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
