package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"homescout/models"
)

// PostgresWriter persists export runs to PostgreSQL.
type PostgresWriter struct {
	db  *sql.DB
	sql *sqlExporter
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, sql: &sqlExporter{db: db, placeholder: dollarPlaceholder}}
	if err := pw.sql.migrate(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS home_listings (
		run_id           UUID         NOT NULL,
		reference_number INTEGER      NOT NULL,
		address          TEXT         NOT NULL,
		price            INTEGER      NOT NULL,
		bedrooms         INTEGER      NOT NULL,
		bathrooms        NUMERIC(4,2) NOT NULL,
		square_feet      INTEGER      NOT NULL,
		created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, reference_number)
	)`,
	`CREATE TABLE IF NOT EXISTS home_distances (
		run_id           UUID    NOT NULL,
		reference_number INTEGER NOT NULL,
		destination      TEXT    NOT NULL,
		meters           INTEGER,
		PRIMARY KEY (run_id, reference_number, destination)
	)`,
	`CREATE TABLE IF NOT EXISTS home_constants (
		run_id UUID NOT NULL,
		name   TEXT NOT NULL,
		meters INTEGER,
		PRIMARY KEY (run_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_home_listings_price ON home_listings(price)`,
	`CREATE INDEX IF NOT EXISTS idx_home_distances_destination ON home_distances(destination)`,
}

// Stage inserts the whole run in one transaction left open until Commit.
func (pw *PostgresWriter) Stage(ctx context.Context, s *Snapshot) (Staged, error) {
	st, err := pw.sql.stage(ctx, "postgres", s)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (pw *PostgresWriter) WriteExport(ctx context.Context, s *Snapshot) error {
	return WriteAll(ctx, s, pw)
}

// FetchDistances returns the long-form distances stored for a run.
func (pw *PostgresWriter) FetchDistances(ctx context.Context, runID string) ([]models.DistanceRecord, error) {
	recs, err := pw.sql.loadDistances(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return recs, nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
