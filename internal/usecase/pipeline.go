package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Backup, Archiver and Notifier are optional.
type PipelineDeps struct {
	Catalog      ports.Catalog
	Harvester    *Harvester
	Enricher     *Enricher
	Backup       ports.SnapshotBackup
	Archiver     ports.Archiver
	Notifier     ports.Notifier
	SnapshotPath string
	Logger       *slog.Logger
}

// Pipeline runs harvest, enrichment and export as one unit of work.
type Pipeline struct {
	catalog      ports.Catalog
	harvester    *Harvester
	enricher     *Enricher
	backup       ports.SnapshotBackup
	archiver     ports.Archiver
	notifier     ports.Notifier
	snapshotPath string
	base         *slog.Logger
	logger       *slog.Logger
}

// RunReport summarizes one pipeline execution.
type RunReport struct {
	RunID      string    `json:"runId"`
	Added      int       `json:"added"`
	Processed  int       `json:"processed"`
	Enriched   int       `json:"enriched"`
	Exported   int       `json:"exported"`
	Skipped    bool      `json:"skipped"`
	ArchiveKey string    `json:"archiveKey,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	return &Pipeline{
		catalog:      deps.Catalog,
		harvester:    deps.Harvester,
		enricher:     deps.Enricher,
		backup:       deps.Backup,
		archiver:     deps.Archiver,
		notifier:     deps.Notifier,
		snapshotPath: deps.SnapshotPath,
		base:         base,
		logger:       logging.Component(base, "pipeline"),
	}
}

// Run executes one pipeline pass. Without fullUpdate the run stops after
// harvesting when nothing new arrived and nothing is left to enrich.
// An unreachable catalog or a missing feed list fails the run; every other
// problem is logged and the run continues.
func (p *Pipeline) Run(ctx context.Context, fullUpdate bool) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}
	runLogger := p.base.With("run_id", report.RunID)
	logger := logging.Component(runLogger, "pipeline")
	logger.Info("pipeline started", "full_update", fullUpdate)

	finish := func(err error) (RunReport, error) {
		report.FinishedAt = time.Now()
		if err != nil {
			logger.Error("pipeline failed", "error", err)
			return report, err
		}
		logger.Info("pipeline finished",
			"added", report.Added,
			"processed", report.Processed,
			"enriched", report.Enriched,
			"exported", report.Exported,
			"skipped", report.Skipped,
			"duration", report.FinishedAt.Sub(report.StartedAt))
		return report, nil
	}

	if err := p.catalog.Ping(ctx); err != nil {
		return finish(fmt.Errorf("catalog unreachable: %w", err))
	}

	if p.backup != nil {
		if name, err := p.backup.Backup(ctx); err != nil {
			logger.Warn("snapshot backup failed", "error", err)
		} else if name != "" {
			logger.Info("snapshot backed up", "path", name)
		}
	}

	added, err := p.harvest(ctx, runLogger)
	if err != nil {
		return finish(err)
	}
	report.Added = added

	unprocessed, err := p.catalog.GetUnprocessedRaw(ctx)
	if err != nil {
		return finish(fmt.Errorf("load unprocessed: %w", err))
	}
	incomplete, err := p.catalog.GetIncompleteProcessed(ctx)
	if err != nil {
		return finish(fmt.Errorf("load incomplete: %w", err))
	}

	if added == 0 && len(unprocessed) == 0 && len(incomplete) == 0 && !fullUpdate {
		logger.Info("nothing new, skipping enrichment and export")
		report.Skipped = true
		return finish(nil)
	}

	enricher := p.enricher.WithLogger(runLogger)
	enriched, err := enricher.Enrich(ctx, unprocessed, incomplete)
	report.Enriched = enriched
	report.Processed = enricher.LastNew()
	if err != nil {
		return finish(fmt.Errorf("enrich: %w", err))
	}

	exported, err := p.catalog.ExportSnapshot(ctx, p.snapshotPath)
	if err != nil {
		return finish(fmt.Errorf("export snapshot: %w", err))
	}
	report.Exported = exported

	if p.archiver != nil {
		if key, err := p.archiver.Upload(ctx, p.snapshotPath); err != nil {
			logger.Warn("snapshot archive failed", "error", err)
		} else {
			report.ArchiveKey = key
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, buildRunSummary(report)); err != nil {
			logger.Warn("run summary not delivered", "error", err)
		}
	}

	return finish(nil)
}

// Harvest runs only the harvesting stage.
func (p *Pipeline) Harvest(ctx context.Context) (int, error) {
	return p.harvest(ctx, p.base)
}

func (p *Pipeline) harvest(ctx context.Context, logger *slog.Logger) (int, error) {
	added, err := p.harvester.WithLogger(logger).Harvest(ctx)
	if err != nil {
		return added, fmt.Errorf("harvest: %w", err)
	}
	return added, nil
}

// Enrich runs only the enrichment stage over whatever is pending.
func (p *Pipeline) Enrich(ctx context.Context) (int, error) {
	unprocessed, err := p.catalog.GetUnprocessedRaw(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unprocessed: %w", err)
	}
	incomplete, err := p.catalog.GetIncompleteProcessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("load incomplete: %w", err)
	}
	return p.enricher.Enrich(ctx, unprocessed, incomplete)
}

// Export writes the processed set to path, or to the configured snapshot.
func (p *Pipeline) Export(ctx context.Context, path string) (int, error) {
	if path == "" {
		path = p.snapshotPath
	}
	return p.catalog.ExportSnapshot(ctx, path)
}

func buildRunSummary(r RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DataPaperIndex run %s\n", r.RunID)
	fmt.Fprintf(&b, "New papers: %d\n", r.Added)
	fmt.Fprintf(&b, "Newly processed: %d\n", r.Processed)
	fmt.Fprintf(&b, "Enriched: %d\n", r.Enriched)
	fmt.Fprintf(&b, "Exported: %d\n", r.Exported)
	if r.ArchiveKey != "" {
		fmt.Fprintf(&b, "Archive: %s\n", r.ArchiveKey)
	}
	fmt.Fprintf(&b, "Duration: %s", time.Since(r.StartedAt).Round(time.Second))
	return b.String()
}
