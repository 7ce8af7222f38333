package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"homescout/models"
)

func sampleSnapshot() *Snapshot {
	l0 := models.CleanedListing{ReferenceNumber: 0, Address: "1 A St, Papillion, NE", Price: 250000, Bedrooms: 3, Bathrooms: 2.5, SquareFeet: 1800}
	l1 := models.CleanedListing{ReferenceNumber: 1, Address: "2 B St", Price: 199000, Bedrooms: 2, Bathrooms: 1, SquareFeet: 1100}
	consts := map[string]models.Meters{"sc_to_wal": models.Distance(4200)}
	table := &models.ExportTable{
		DestinationNames: []string{"gym", "work"},
		ConstantNames:    []string{"sc_to_wal"},
		Rows: []models.ExportRow{
			{Listing: l0, Distances: map[string]models.Meters{"gym": models.Distance(1500), "work": models.MissingDistance()}, Constants: consts},
			{Listing: l1, Distances: map[string]models.Meters{"gym": models.Distance(0), "work": models.Distance(9000)}, Constants: consts},
		},
	}
	dists := []models.DistanceRecord{
		{ReferenceNumber: 0, OriginAddress: l0.Address, DestinationName: "gym", Meters: models.Distance(1500)},
		{ReferenceNumber: 0, OriginAddress: l0.Address, DestinationName: "work", Meters: models.MissingDistance()},
		{ReferenceNumber: 1, OriginAddress: l1.Address, DestinationName: "gym", Meters: models.Distance(0)},
		{ReferenceNumber: 1, OriginAddress: l1.Address, DestinationName: "work", Meters: models.Distance(9000)},
	}
	return NewSnapshot(table, dists)
}

func TestCSVWriteAndReadExport(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "out", "homeData.csv")
	distPath := filepath.Join(dir, "out", "distances.csv")

	w := NewCSVWriter(exportPath, distPath)
	if err := w.WriteExport(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}

	raw, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if lines[0] != "ReferenceNumber,Address,Price,Bedrooms,Bathrooms,SquareFeet,gym,work,sc_to_wal" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `0,"1 A St, Papillion, NE",250000,3,2.5,1800,1500,NO DISTANCE,4200` {
		t.Errorf("row 0 = %q", lines[1])
	}

	table, err := ReadExport(exportPath)
	if err != nil {
		t.Fatalf("ReadExport: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if m, _ := table.Rows[0].Column("work"); m.OK {
		t.Errorf("work for ref 0 should read back as missing, got %v", m)
	}
	if m, _ := table.Rows[1].Column("gym"); !m.OK || m.Value != 0 {
		t.Errorf("a real 0 m distance should survive, got %v", m)
	}
	if m, ok := table.Rows[1].Column("sc_to_wal"); !ok || m.Value != 4200 {
		t.Errorf("sc_to_wal = %v, %v", m, ok)
	}
	if table.Rows[0].Listing.Bathrooms != 2.5 || table.Rows[0].Listing.Address != "1 A St, Papillion, NE" {
		t.Errorf("listing round trip: %+v", table.Rows[0].Listing)
	}

	raw, err = os.ReadFile(distPath)
	if err != nil {
		t.Fatalf("read distances: %v", err)
	}
	if !strings.Contains(string(raw), `0,"1 A St, Papillion, NE",work,NO DISTANCE`) {
		t.Errorf("distances file missing sentinel row:\n%s", raw)
	}

	for _, path := range []string{exportPath, distPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0644 {
			t.Errorf("%s mode = %v; want 0644", filepath.Base(path), perm)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(exportPath))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCSVWriterRespectsLock(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "homeData.csv")

	held := flock.New(exportPath + ".lock")
	if err := held.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewCSVWriter(exportPath, "").WriteExport(ctx, sampleSnapshot()); err == nil {
		t.Fatal("expected an error while another run holds the lock")
	}
	if _, err := os.Stat(exportPath); !os.IsNotExist(err) {
		t.Errorf("export should not exist, stat err = %v", err)
	}
}

func TestReadExportRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("Ref,Address\n0,x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadExport(path); err == nil {
		t.Error("expected header error")
	}
}

func TestSQLiteWriter(t *testing.T) {
	ctx := context.Background()
	sw, err := NewSQLiteWriter(ctx, filepath.Join(t.TempDir(), "homes.db"))
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer sw.Close()

	snap := sampleSnapshot()
	if err := sw.WriteExport(ctx, snap); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}

	var listings int
	if err := sw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM home_listings WHERE run_id = ?`, snap.RunID).Scan(&listings); err != nil {
		t.Fatalf("count listings: %v", err)
	}
	if listings != 2 {
		t.Errorf("stored %d listings; want 2", listings)
	}

	var nulls int
	if err := sw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM home_distances WHERE meters IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 1 {
		t.Errorf("expected 1 NULL distance, got %d", nulls)
	}

	recs, err := sw.FetchDistances(ctx, snap.RunID)
	if err != nil {
		t.Fatalf("FetchDistances: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	for i, want := range snap.Distances {
		if recs[i] != want {
			t.Errorf("record %d = %+v; want %+v", i, recs[i], want)
		}
	}

	// a second run is kept apart by its run id
	if err := sw.WriteExport(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("second WriteExport: %v", err)
	}
	if err := sw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM home_listings`).Scan(&listings); err != nil {
		t.Fatal(err)
	}
	if listings != 4 {
		t.Errorf("stored %d listings over two runs; want 4", listings)
	}
}

func TestInsertStatement(t *testing.T) {
	e := &sqlExporter{placeholder: dollarPlaceholder}
	got := e.insert("t", []string{"a", "b"}, 2)
	want := "INSERT INTO t (a, b) VALUES ($1,$2),($3,$4)"
	if got != want {
		t.Errorf("insert = %q; want %q", got, want)
	}
	e.placeholder = questionPlaceholder
	if got := e.insert("t", []string{"a"}, 2); got != "INSERT INTO t (a) VALUES (?),(?)" {
		t.Errorf("insert = %q", got)
	}
}

type failingWriter struct {
	stageErr, commitErr error
	aborted, committed  bool
}

func (f *failingWriter) Stage(ctx context.Context, s *Snapshot) (Staged, error) {
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	return f, nil
}

func (f *failingWriter) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *failingWriter) Abort()       { f.aborted = true }
func (f *failingWriter) Close() error { return nil }

func TestWriteAllLeavesNoCSVWhenAnotherSinkFails(t *testing.T) {
	errSink := errors.New("insert rejected")
	tests := []struct {
		name string
		sink *failingWriter
		// csvFirst puts the CSV writer ahead of the failing sink
		csvFirst bool
	}{
		{"stage fails after csv staged", &failingWriter{stageErr: errSink}, true},
		{"stage fails before csv staged", &failingWriter{stageErr: errSink}, false},
		{"commit fails before csv commits", &failingWriter{commitErr: errSink}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			exportPath := filepath.Join(dir, "homeData.csv")
			csvw := NewCSVWriter(exportPath, filepath.Join(dir, "distances.csv"))

			writers := []ExportWriter{tt.sink, csvw}
			if tt.csvFirst {
				writers = []ExportWriter{csvw, tt.sink}
			}
			err := WriteAll(context.Background(), sampleSnapshot(), writers...)
			if !errors.Is(err, errSink) {
				t.Fatalf("WriteAll err = %v; want %v", err, errSink)
			}
			if _, err := os.Stat(exportPath); !os.IsNotExist(err) {
				t.Errorf("export should not exist, stat err = %v", err)
			}
			entries, _ := os.ReadDir(dir)
			for _, e := range entries {
				if strings.HasSuffix(e.Name(), ".tmp") {
					t.Errorf("temp file left behind: %s", e.Name())
				}
			}

			// the lock was released, so a later run can write
			if err := csvw.WriteExport(context.Background(), sampleSnapshot()); err != nil {
				t.Errorf("later WriteExport: %v", err)
			}
		})
	}
}

func TestWriteAllCommitsEverySink(t *testing.T) {
	a, b := &failingWriter{}, &failingWriter{}
	if err := WriteAll(context.Background(), sampleSnapshot(), a, b); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if !a.committed || !b.committed || a.aborted || b.aborted {
		t.Errorf("a = %+v, b = %+v; want both committed and neither aborted", a, b)
	}
}

func TestSQLiteStageRollsBackOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "homes.db")
	sw, err := NewSQLiteWriter(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	defer sw.Close()

	snap := sampleSnapshot()
	// the second listing reuses the first one's key
	snap.Table.Rows[1].Listing.ReferenceNumber = 0
	if _, err := sw.Stage(ctx, snap); err == nil {
		t.Fatal("expected a constraint error")
	}
	var n int
	if err := sw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM home_listings`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stored %d listings after a failed stage; want 0", n)
	}
}

func TestPostgresSchemaKeepsQuarterBaths(t *testing.T) {
	if !strings.Contains(postgresSchema[0], "NUMERIC(4,2)") || strings.Contains(postgresSchema[0], "NUMERIC(4,1)") {
		t.Errorf("home_listings.bathrooms should hold two decimals:\n%s", postgresSchema[0])
	}
}
