package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"homescout/models"
)

// Snapshot is everything one successful collect run produces.
type Snapshot struct {
	RunID     string
	CreatedAt time.Time
	Table     *models.ExportTable
	Distances []models.DistanceRecord
}

// NewSnapshot stamps the run with a fresh id.
func NewSnapshot(table *models.ExportTable, distances []models.DistanceRecord) *Snapshot {
	return &Snapshot{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Table:     table,
		Distances: distances,
	}
}

// Staged is a fully written run that is not visible yet.
type Staged interface {
	Commit() error
	Abort()
}

// ExportWriter is the interface any storage backend must satisfy.
type ExportWriter interface {
	Stage(ctx context.Context, s *Snapshot) (Staged, error)
	Close() error
}

// WriteAll stages the run in every writer and commits only once all of them
// have staged it. Writers commit in order, so the one least likely to fail
// on commit belongs last.
func WriteAll(ctx context.Context, s *Snapshot, writers ...ExportWriter) error {
	staged := make([]Staged, 0, len(writers))
	abort := func() {
		for _, st := range staged {
			st.Abort()
		}
	}
	for _, w := range writers {
		st, err := w.Stage(ctx, s)
		if err != nil {
			abort()
			return err
		}
		staged = append(staged, st)
	}
	for i, st := range staged {
		if err := st.Commit(); err != nil {
			for _, rest := range staged[i+1:] {
				rest.Abort()
			}
			return err
		}
	}
	return nil
}
