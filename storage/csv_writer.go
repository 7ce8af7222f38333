package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// DistancesHeader is the long-form distance table layout.
var DistancesHeader = []string{"ReferenceNumber", "Address", "Destination", "Meters"}

// CSVWriter writes the export table, and optionally the long-form distance
// table, as whole files. A lock file next to the export keeps two runs from
// interleaving, and each file is written to a temp name then renamed so a
// reader never sees half a table.
type CSVWriter struct {
	exportPath    string
	distancesPath string
	lockWait      time.Duration
}

// NewCSVWriter writes the export to exportPath. distancesPath may be empty.
func NewCSVWriter(exportPath, distancesPath string) *CSVWriter {
	return &CSVWriter{exportPath: exportPath, distancesPath: distancesPath, lockWait: 250 * time.Millisecond}
}

// csvStage holds the lock and the temp files until Commit renames them.
type csvStage struct {
	lock  *flock.Flock
	files []stagedFile
}

type stagedFile struct {
	tmp, dst string
}

// Stage writes every file to a temp name under the lock. Nothing is visible
// at the final paths until Commit.
func (c *CSVWriter) Stage(ctx context.Context, s *Snapshot) (Staged, error) {
	if err := os.MkdirAll(filepath.Dir(c.exportPath), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	lock := flock.New(c.exportPath + ".lock")
	locked, err := lock.TryLockContext(ctx, c.lockWait)
	if err != nil {
		return nil, fmt.Errorf("csv: lock %s: %w", c.exportPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("csv: could not lock %s", c.exportPath)
	}
	st := &csvStage{lock: lock}

	t := s.Table
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Header())
	for _, r := range t.Rows {
		rows = append(rows, t.Record(r))
	}
	if err := st.add(c.exportPath, rows); err != nil {
		st.Abort()
		return nil, err
	}

	if c.distancesPath != "" {
		rows = make([][]string, 0, len(s.Distances)+1)
		rows = append(rows, DistancesHeader)
		for _, d := range s.Distances {
			rows = append(rows, []string{strconv.Itoa(d.ReferenceNumber), d.OriginAddress, d.DestinationName, d.Meters.String()})
		}
		if err := st.add(c.distancesPath, rows); err != nil {
			st.Abort()
			return nil, err
		}
	}
	return st, nil
}

// WriteExport stages and commits in one step.
func (c *CSVWriter) WriteExport(ctx context.Context, s *Snapshot) error {
	return WriteAll(ctx, s, c)
}

// Close is a no-op; files are closed as soon as they are written.
func (c *CSVWriter) Close() error { return nil }

func (st *csvStage) add(path string, rows [][]string) error {
	tmp, err := writeTemp(path, rows)
	if err != nil {
		return err
	}
	st.files = append(st.files, stagedFile{tmp: tmp, dst: path})
	return nil
}

func (st *csvStage) Commit() error {
	defer func() { _ = st.lock.Unlock() }()
	for i, f := range st.files {
		if err := os.Rename(f.tmp, f.dst); err != nil {
			for _, rest := range st.files[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("csv: rename into %s: %w", f.dst, err)
		}
	}
	return nil
}

func (st *csvStage) Abort() {
	for _, f := range st.files {
		_ = os.Remove(f.tmp)
	}
	_ = st.lock.Unlock()
}

// writeTemp writes rows next to path and returns the temp file name.
func writeTemp(path string, rows [][]string) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("csv: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("csv: write %s: %w", path, err)
	}
	// CreateTemp uses 0600; the export is an ordinary shared file.
	if err := f.Chmod(0644); err != nil {
		return "", fmt.Errorf("csv: chmod %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("csv: close %s: %w", path, err)
	}
	return f.Name(), nil
}
