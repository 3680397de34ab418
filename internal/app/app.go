package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/infrastructure/archive"
	"DataPaperIndex/internal/infrastructure/backfill"
	"DataPaperIndex/internal/infrastructure/llm"
	"DataPaperIndex/internal/infrastructure/parser"
	"DataPaperIndex/internal/infrastructure/scheduler"
	"DataPaperIndex/internal/infrastructure/storage"
	"DataPaperIndex/internal/infrastructure/telegram"
	"DataPaperIndex/internal/journal"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
	"DataPaperIndex/internal/scanner"
	"DataPaperIndex/internal/usecase"
)

const runKey = "pipeline-run"

// RefreshResult is what a manual trigger reports to the presentation layer.
type RefreshResult struct {
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	base         *slog.Logger
	logger       *slog.Logger
	catalog      ports.Catalog
	closeCatalog func() error
	reader       ports.CatalogReader
	fetcher      ports.AbstractFetcher
	pipeline     *usecase.Pipeline
	runs         singleflight.Group
}

// New builds the application from configuration. The catalog backend is
// opened here; callers must Close the application.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	catalog, closeCatalog, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Harvest.Timeout}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewFeedScanner(httpClient, baseLogger))
	source := parser.NewStrategySource(registry, cfg.Journals, cfg.Harvest.FeedConcurrency, baseLogger)

	fetcher := backfill.NewFetcher(httpClient, baseLogger)

	harvester := usecase.NewHarvester(usecase.HarvesterDeps{
		Source:            source,
		Catalog:           catalog,
		Backfill:          fetcher,
		Identifier:        journal.NewResolver(httpClient, logging.Component(baseLogger, "journal")),
		Profiles:          cfg.Profiles(),
		MinAbstractLength: cfg.Harvest.MinAbstractLength,
		Logger:            baseLogger,
	})
	enricher := usecase.NewEnricher(usecase.EnricherDeps{
		Catalog:        catalog,
		Model:          llm.NewClient(cfg.LLM, baseLogger),
		CallPause:      cfg.Enrichment.CallPause,
		BatchPause:     cfg.Enrichment.BatchPause,
		BatchSize:      cfg.Enrichment.BatchSize,
		DefaultJournal: cfg.Enrichment.DefaultJournal,
		Logger:         baseLogger,
	})

	deps := usecase.PipelineDeps{
		Catalog:      catalog,
		Harvester:    harvester,
		Enricher:     enricher,
		Backup:       storage.SnapshotFiles{Path: cfg.Export.SnapshotPath, BackupDir: cfg.Export.BackupDir},
		SnapshotPath: cfg.Export.SnapshotPath,
		Logger:       baseLogger,
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewS3Archiver(cfg.Archive)
		if err != nil {
			baseLogger.Warn("snapshot archive disabled", "error", err)
		} else {
			deps.Archiver = archiver
		}
	}
	if notifier := telegram.NewNotifier(cfg.Notifications.Telegram); notifier.Enabled() {
		deps.Notifier = notifier
	}

	return &Application{
		cfg:          cfg,
		base:         baseLogger,
		logger:       logging.Component(baseLogger, "app"),
		catalog:      catalog,
		closeCatalog: closeCatalog,
		reader:       storage.NewFallbackCatalog(catalog, cfg.Export.SnapshotPath, baseLogger),
		fetcher:      fetcher,
		pipeline:     usecase.NewPipeline(deps),
	}, nil
}

// Run executes one pipeline pass. Concurrent callers share the in-flight run
// and its report.
func (a *Application) Run(ctx context.Context, fullUpdate bool) (usecase.RunReport, error) {
	v, err, shared := a.runs.Do(runKey, func() (interface{}, error) {
		return a.pipeline.Run(ctx, fullUpdate)
	})
	if shared {
		a.logger.Info("joined in-flight pipeline run")
	}
	report, _ := v.(usecase.RunReport)
	return report, err
}

// Refresh is the manual trigger: it never returns an error, only a status.
// Count is the number of newly processed records; repairs are not counted.
func (a *Application) Refresh(ctx context.Context) RefreshResult {
	report, err := a.Run(ctx, false)
	if err != nil {
		return RefreshResult{Status: "error", Message: err.Error()}
	}
	return RefreshResult{Status: "success", Count: report.Processed}
}

// Harvest runs only the feed harvesting stage.
func (a *Application) Harvest(ctx context.Context) (int, error) {
	if err := a.catalog.Ping(ctx); err != nil {
		return 0, err
	}
	return a.pipeline.Harvest(ctx)
}

// Enrich runs only the enrichment stage.
func (a *Application) Enrich(ctx context.Context) (int, error) {
	if err := a.catalog.Ping(ctx); err != nil {
		return 0, err
	}
	return a.pipeline.Enrich(ctx)
}

// Export writes the processed set; an empty path uses the configured snapshot.
func (a *Application) Export(ctx context.Context, path string) (int, error) {
	return a.pipeline.Export(ctx, path)
}

// FetchAbstract looks up one paper's abstract from its landing page.
func (a *Application) FetchAbstract(ctx context.Context, doiOrURL, journalHint string) domain.AbstractResult {
	return a.fetcher.FetchAbstract(ctx, doiOrURL, journalHint)
}

// Reader serves the presentation read paths with snapshot fallback.
func (a *Application) Reader() ports.CatalogReader {
	return a.reader
}

// Schedule runs incremental pipelines on the configured interval until ctx
// is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	runner := usecase.NewScheduler(driver, func(ctx context.Context) error {
		_, err := a.Run(ctx, false)
		return err
	}, a.base)

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)

	<-ctx.Done()
	return runner.Stop(context.Background())
}

// Close releases the catalog backend.
func (a *Application) Close() error {
	if a.closeCatalog == nil {
		return nil
	}
	return a.closeCatalog()
}
