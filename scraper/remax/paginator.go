package remax

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"homescout/models"
	"homescout/utils"
)

// PaginatorConfig controls how far and how carefully results are walked.
type PaginatorConfig struct {
	RootURL string
	// MaxPages stops the walk even if the site never repeats a page.
	MaxPages int
	// RefetchPrevious re-downloads page i-1 alongside page i before
	// comparing them, instead of reusing the copy fetched one step earlier.
	RefetchPrevious bool
}

// Paginator walks results pages until the site starts repeating itself.
// The site answers any index past the last page with the last page again,
// so the walk ends at the first page equal to its predecessor.
type Paginator struct {
	cfg       PaginatorConfig
	fetcher   PageFetcher
	extractor *Extractor
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

func NewPaginator(cfg PaginatorConfig, fetcher PageFetcher, extractor *Extractor, retry *utils.RetryConfig, logger *utils.Logger) *Paginator {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	return &Paginator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		retry:     retry,
		logger:    logger,
	}
}

// PageURL builds the address of results page i (1-based).
func PageURL(root string, i int) string {
	return fmt.Sprintf("%s/page-%d", strings.TrimRight(root, "/"), i)
}

// Run returns every listing from page 1 through the last distinct page.
// Any page that cannot be fetched aborts the walk.
func (p *Paginator) Run(ctx context.Context) (models.ListingTable, error) {
	p.logger.Info("[remax] Creating connection with %s", p.cfg.RootURL)

	first, err := p.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	table := append(models.ListingTable(nil), first...)
	p.logger.Info("[remax] Scanned page 1: %d listings", len(first))

	prev := first
	for i := 2; ; i++ {
		if i > p.cfg.MaxPages {
			p.logger.Warn("[remax] Stopped at page limit %d without seeing a repeated page", p.cfg.MaxPages)
			return table, nil
		}

		current, previous, err := p.fetchPair(ctx, i, prev)
		if err != nil {
			return nil, err
		}
		if current.Equal(previous) {
			p.logger.Info("[remax] Scan complete: page %d repeats page %d, %d listings total", i, i-1, len(table))
			return table, nil
		}

		table = append(table, current...)
		prev = current
		p.logger.Info("[remax] Scanned page %d: %d listings (%d so far)", i, len(current), len(table))
	}
}

func (p *Paginator) fetchPair(ctx context.Context, i int, prev models.ListingPage) (current, previous models.ListingPage, err error) {
	if !p.cfg.RefetchPrevious {
		current, err = p.fetchPage(ctx, i)
		return current, prev, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = p.fetchPage(gctx, i)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = p.fetchPage(gctx, i-1)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}

func (p *Paginator) fetchPage(ctx context.Context, i int) (models.ListingPage, error) {
	url := PageURL(p.cfg.RootURL, i)

	var page models.ListingPage
	err := p.retry.Do(ctx, fmt.Sprintf("fetch page %d", i), func(ctx context.Context) error {
		doc, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			return err
		}
		page = p.extractor.ExtractPage(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug("[remax] %s -> %d cards", url, len(page))
	return page, nil
}
