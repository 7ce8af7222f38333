package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"homescout/distancematrix"
	"homescout/models"
	"homescout/utils"
)

// MatrixClient is the distance-matrix API as the planner sees it.
type MatrixClient interface {
	Matrix(ctx context.Context, origins, destinations []string) (*distancematrix.Response, error)
}

// BatchRequestError is a batch whose request failed or whose response did
// not line up with the origins and destinations sent. It aborts the run.
type BatchRequestError struct {
	Batch   int // 1-based
	Origins int
	Err     error
}

func (e *BatchRequestError) Error() string {
	return fmt.Sprintf("distance batch %d (%d origins): %v", e.Batch, e.Origins, e.Err)
}

func (e *BatchRequestError) Unwrap() error { return e.Err }

var errShape = errors.New("response shape does not match request")

// BatchSize is the most origins one request may carry when every origin is
// paired with all destinations: the largest b with b*destinations <= maxElements,
// capped at maxOrigins.
func BatchSize(destinations, maxElements, maxOrigins int) (int, error) {
	if destinations <= 0 {
		return 0, errors.New("planner: no destinations")
	}
	if destinations > maxElements {
		return 0, fmt.Errorf("planner: %d destinations exceed the %d elements allowed per request", destinations, maxElements)
	}
	b := maxElements / destinations
	if maxOrigins > 0 && b > maxOrigins {
		b = maxOrigins
	}
	return b, nil
}

// Partition splits listings into contiguous batches of at most size.
func Partition(listings []models.CleanedListing, size int) [][]models.CleanedListing {
	if size < 1 || len(listings) == 0 {
		return nil
	}
	batches := make([][]models.CleanedListing, 0, (len(listings)+size-1)/size)
	for start := 0; start < len(listings); start += size {
		end := min(start+size, len(listings))
		batches = append(batches, listings[start:end])
	}
	return batches
}

// PlannerConfig bounds request size and parallelism.
type PlannerConfig struct {
	MaxElements int
	MaxOrigins  int
	Workers     int
}

// Planner fetches the distance from every cleaned listing to every
// destination in as few requests as the per-request ceiling allows.
type Planner struct {
	client   MatrixClient
	throttle *utils.ElementThrottle
	retry    *utils.RetryConfig
	cfg      PlannerConfig
	logger   *utils.Logger
}

func NewPlanner(client MatrixClient, throttle *utils.ElementThrottle, retry *utils.RetryConfig, cfg PlannerConfig, logger *utils.Logger) *Planner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Planner{client: client, throttle: throttle, retry: retry, cfg: cfg, logger: logger}
}

// IsRetryableDistanceError is a utils.RetryConfig predicate for matrix calls.
func IsRetryableDistanceError(err error) bool {
	if errors.Is(err, errShape) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *distancematrix.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// Distances returns one record per listing per destination, ordered by
// reference number then destination. An element the API could not route
// is recorded as a missing distance.
func (p *Planner) Distances(ctx context.Context, listings []models.CleanedListing, dests []models.Destination) ([]models.DistanceRecord, error) {
	size, err := BatchSize(len(dests), p.cfg.MaxElements, p.cfg.MaxOrigins)
	if err != nil {
		return nil, err
	}
	batches := Partition(listings, size)
	p.logger.Info("[planner] %d listings × %d destinations → %d requests of up to %d origins",
		len(listings), len(dests), len(batches), size)

	addrs := make([]string, len(dests))
	for i, d := range dests {
		addrs[i] = d.Address
	}

	results := make([][]models.DistanceRecord, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := p.runBatch(gctx, i+1, batch, dests, addrs)
			if err != nil {
				return err
			}
			results[i] = recs
			p.logger.Info("[planner] Batch %d/%d complete", i+1, len(batches))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.DistanceRecord, 0, len(listings)*len(dests))
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

func (p *Planner) runBatch(ctx context.Context, n int, batch []models.CleanedListing, dests []models.Destination, destAddrs []string) ([]models.DistanceRecord, error) {
	origins := make([]string, len(batch))
	for i, l := range batch {
		origins[i] = l.Address
	}

	var res *distancematrix.Response
	err := p.retry.Do(ctx, fmt.Sprintf("distance batch %d", n), func(ctx context.Context) error {
		if err := p.throttle.Wait(ctx, len(origins)*len(destAddrs)); err != nil {
			return err
		}
		r, err := p.client.Matrix(ctx, origins, destAddrs)
		if err != nil {
			return err
		}
		if err := checkShape(r, len(origins), len(destAddrs)); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, &BatchRequestError{Batch: n, Origins: len(origins), Err: err}
	}

	recs := make([]models.DistanceRecord, 0, len(batch)*len(dests))
	for i, l := range batch {
		for j, d := range dests {
			m := elementMeters(res.Rows[i].Elements[j])
			if !m.OK {
				p.logger.Debug("[planner] No route from %s to %s (%s)", l.Address, d.Name, res.Rows[i].Elements[j].Status)
			}
			recs = append(recs, models.DistanceRecord{
				ReferenceNumber: l.ReferenceNumber,
				OriginAddress:   l.Address,
				DestinationName: d.Name,
				Meters:          m,
			})
		}
	}
	return recs, nil
}

// Constants fetches each pair once. The result is keyed by pair name.
func (p *Planner) Constants(ctx context.Context, pairs []models.ConstantPair) (map[string]models.Meters, error) {
	out := make(map[string]models.Meters, len(pairs))
	for _, c := range pairs {
		var res *distancematrix.Response
		err := p.retry.Do(ctx, "constant "+c.Name, func(ctx context.Context) error {
			if err := p.throttle.Wait(ctx, 1); err != nil {
				return err
			}
			r, err := p.client.Matrix(ctx, []string{c.From}, []string{c.To})
			if err != nil {
				return err
			}
			if err := checkShape(r, 1, 1); err != nil {
				return err
			}
			res = r
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("planner: constant pair %s: %w", c.Name, err)
		}
		out[c.Name] = elementMeters(res.Rows[0].Elements[0])
		p.logger.Info("[planner] Constant %s = %s m", c.Name, out[c.Name])
	}
	return out, nil
}

func checkShape(r *distancematrix.Response, origins, dests int) error {
	if len(r.Rows) != origins {
		return fmt.Errorf("%w: %d rows for %d origins", errShape, len(r.Rows), origins)
	}
	for i, row := range r.Rows {
		if len(row.Elements) != dests {
			return fmt.Errorf("%w: row %d has %d elements for %d destinations", errShape, i, len(row.Elements), dests)
		}
	}
	return nil
}

func elementMeters(e distancematrix.Element) models.Meters {
	if e.Status != distancematrix.StatusOK {
		return models.MissingDistance()
	}
	return models.Distance(e.Distance.Value)
}
