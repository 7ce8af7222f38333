package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homescout/config"
	"homescout/distancematrix"
	"homescout/scraper/remax"
	"homescout/services"
	"homescout/storage"
	"homescout/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	if len(os.Args) > 1 && os.Args[1] == "store-key" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: homescout store-key <google-maps-api-key>")
			os.Exit(2)
		}
		if err := config.StoreAPIKey(os.Args[2]); err != nil {
			logger.Error("Failed to store API key: %v", err)
			os.Exit(1)
		}
		logger.Info("API key stored in the system keychain (service %q)", config.KeyringService)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Run aborted, nothing was written: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	project, err := config.LoadProject(cfg.ProjectConfigPath)
	if err != nil {
		return err
	}
	apiKey, err := config.ResolveAPIKey(cfg.GoogleAPIKey, project.GoogleKey)
	if err != nil {
		return err
	}
	dests := project.DestinationSet()
	pairs := project.Pairs()

	logger.Info("=== homescout collect starting ===")
	logger.Info("Config: fetch=%s | max pages: %d | destinations: %d | constants: %d | workers: %d",
		cfg.FetchMode, cfg.MaxPages, len(dests), len(pairs), cfg.DistanceWorkers)

	// WriteAll commits in order; the CSV rename goes last.
	var writers []storage.ExportWriter
	defer func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}()
	if cfg.SQLitePath != "" {
		sw, err := storage.NewSQLiteWriter(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		writers = append(writers, sw)
	}
	if cfg.ExportPostgres {
		pw, err := storage.NewPostgresWriter(ctx, cfg.DSN())
		if err != nil {
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		writers = append(writers, pw)
	}
	writers = append(writers, storage.NewCSVWriter(cfg.ExportCSVPath, cfg.DistancesCSVPath))

	fetcher, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	pageRetry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
		Retryable:   remax.IsRetryable,
	}
	paginator := remax.NewPaginator(remax.PaginatorConfig{
		RootURL:         cfg.RootURL,
		MaxPages:        cfg.MaxPages,
		RefetchPrevious: cfg.RefetchPreviousPage,
	}, fetcher, remax.NewExtractor(logger), pageRetry, logger)

	table, err := paginator.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	cleaned := services.NewCleaner(logger).Clean(table)
	if len(cleaned) == 0 {
		return errors.New("all listings were dropped during cleaning")
	}

	client := distancematrix.NewClient(cfg.DistanceAPIURL, apiKey, cfg.RequestTimeout)
	throttle, err := utils.NewElementThrottle(cfg.ElementsPerMinute, cfg.MaxElementsPerRequest)
	if err != nil {
		return err
	}
	distRetry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
		Retryable:   services.IsRetryableDistanceError,
	}
	planner := services.NewPlanner(client, throttle, distRetry, services.PlannerConfig{
		MaxElements: cfg.MaxElementsPerRequest,
		MaxOrigins:  cfg.MaxOriginsPerRequest,
		Workers:     cfg.DistanceWorkers,
	}, logger)

	records, err := planner.Distances(ctx, cleaned, dests)
	if err != nil {
		return err
	}
	constants, err := planner.Constants(ctx, pairs)
	if err != nil {
		return err
	}

	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.Name
	}
	export := services.Assemble(cleaned, dests, records, names, constants)
	snap := storage.NewSnapshot(export, records)

	if err := storage.WriteAll(ctx, snap, writers...); err != nil {
		return err
	}

	logger.Info("Run %s complete: %d homes exported to %s", snap.RunID, len(export.Rows), cfg.ExportCSVPath)
	return nil
}

func newFetcher(cfg *config.Config) (remax.PageFetcher, func(), error) {
	if cfg.FetchMode == "browser" {
		bf, err := remax.NewBrowserFetcher(cfg.ChromeBin, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, err
		}
		return bf, bf.Close, nil
	}
	return remax.NewHTTPFetcher(cfg.RequestTimeout), func() {}, nil
}
