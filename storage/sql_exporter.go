package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"homescout/models"
)

const insertBatchSize = 50

// sqlExporter holds the inserts shared by the Postgres and SQLite sinks.
// Only the placeholder style and the DDL differ between them.
type sqlExporter struct {
	db          *sql.DB
	placeholder func(n int) string
}

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

func (e *sqlExporter) migrate(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// sqlStage is a transaction holding every insert of one run.
type sqlStage struct {
	tx   *sql.Tx
	name string
}

func (st *sqlStage) Commit() error {
	if err := st.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", st.name, err)
	}
	return nil
}

func (st *sqlStage) Abort() { _ = st.tx.Rollback() }

// stage inserts one run inside a transaction that is left open for the
// caller to commit. A missing distance is NULL.
func (e *sqlExporter) stage(ctx context.Context, name string, s *Snapshot) (*sqlStage, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", name, err)
	}
	if err := e.insertRun(ctx, tx, s); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &sqlStage{tx: tx, name: name}, nil
}

func (e *sqlExporter) insertRun(ctx context.Context, tx *sql.Tx, s *Snapshot) error {
	rows := s.Table.Rows
	for i := 0; i < len(rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(rows))
		args := make([]any, 0, (end-i)*8)
		for _, r := range rows[i:end] {
			l := r.Listing
			args = append(args, s.RunID, l.ReferenceNumber, l.Address, l.Price,
				l.Bedrooms, l.Bathrooms, l.SquareFeet, s.CreatedAt)
		}
		q := e.insert("home_listings",
			[]string{"run_id", "reference_number", "address", "price", "bedrooms", "bathrooms", "square_feet", "created_at"},
			end-i)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}
	}

	dists := s.Distances
	for i := 0; i < len(dists); i += insertBatchSize {
		end := min(i+insertBatchSize, len(dists))
		args := make([]any, 0, (end-i)*4)
		for _, d := range dists[i:end] {
			args = append(args, s.RunID, d.ReferenceNumber, d.DestinationName, nullMeters(d.Meters))
		}
		q := e.insert("home_distances", []string{"run_id", "reference_number", "destination", "meters"}, end-i)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert distances: %w", err)
		}
	}

	if len(s.Table.ConstantNames) > 0 && len(rows) > 0 {
		args := make([]any, 0, len(s.Table.ConstantNames)*3)
		for _, name := range s.Table.ConstantNames {
			args = append(args, s.RunID, name, nullMeters(rows[0].Constants[name]))
		}
		q := e.insert("home_constants", []string{"run_id", "name", "meters"}, len(s.Table.ConstantNames))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert constants: %w", err)
		}
	}
	return nil
}

func (e *sqlExporter) insert(table string, cols []string, nrows int) string {
	valueStrings := make([]string, 0, nrows)
	n := 0
	for r := 0; r < nrows; r++ {
		ph := make([]string, len(cols))
		for c := range cols {
			n++
			ph[c] = e.placeholder(n)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(valueStrings, ","))
}

func nullMeters(m models.Meters) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(m.Value), Valid: m.OK}
}

// loadDistances reads one run's long-form distances back, NULL as missing.
func (e *sqlExporter) loadDistances(ctx context.Context, runID string) ([]models.DistanceRecord, error) {
	q := fmt.Sprintf(`
		SELECT d.reference_number, l.address, d.destination, d.meters
		FROM home_distances d
		JOIN home_listings l ON l.run_id = d.run_id AND l.reference_number = d.reference_number
		WHERE d.run_id = %s
		ORDER BY d.reference_number, d.destination`, e.placeholder(1))
	rows, err := e.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("query distances: %w", err)
	}
	defer rows.Close()

	var out []models.DistanceRecord
	for rows.Next() {
		var (
			r  models.DistanceRecord
			nm sql.NullInt64
		)
		if err := rows.Scan(&r.ReferenceNumber, &r.OriginAddress, &r.DestinationName, &nm); err != nil {
			return nil, fmt.Errorf("scan distance: %w", err)
		}
		if nm.Valid {
			r.Meters = models.Distance(int(nm.Int64))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
