package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/infrastructure/storage"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

type unreachableCatalog struct {
	*storage.FileCatalog
}

func (unreachableCatalog) Ping(context.Context) error {
	return domain.ErrStoreUnavailable
}

type pipelineFixture struct {
	pipeline *Pipeline
	catalog  ports.Catalog
	source   *fakeSource
	model    *fakeModel
	archiver *fakeArchiver
	notifier *fakeNotifier
	snapshot string
	backups  string
}

func newPipelineFixture(t *testing.T, catalog ports.Catalog) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	f := &pipelineFixture{
		catalog:  catalog,
		source:   &fakeSource{},
		model:    newFakeModel(fullResponses),
		archiver: &fakeArchiver{},
		notifier: &fakeNotifier{},
		snapshot: filepath.Join(dir, "papers.json"),
		backups:  filepath.Join(dir, "backups"),
	}
	logger := logging.Discard()
	f.pipeline = NewPipeline(PipelineDeps{
		Catalog:      catalog,
		Harvester:    NewHarvester(HarvesterDeps{Source: f.source, Catalog: catalog, Backfill: &fakeBackfill{}, Logger: logger}),
		Enricher:     NewEnricher(EnricherDeps{Catalog: catalog, Model: f.model, Logger: logger}),
		Backup:       storage.SnapshotFiles{Path: f.snapshot, BackupDir: f.backups},
		Archiver:     f.archiver,
		Notifier:     f.notifier,
		SnapshotPath: f.snapshot,
		Logger:       logger,
	})
	return f
}

func TestPipelineRunHarvestsEnrichesAndExports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newPipelineFixture(t, newCatalog(t))
	f.source.entries = []domain.FeedEntry{
		natureEntry("s41597-025-00001-1", longText("First")),
		natureEntry("s41597-025-00002-2", longText("Second")),
	}

	report, err := f.pipeline.Run(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Enriched)
	assert.Equal(t, 2, report.Exported)
	assert.False(t, report.Skipped)
	assert.Equal(t, "snapshots/papers.json.gz", report.ArchiveKey)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	snapshot, err := storage.ReadSnapshot(f.snapshot)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	for _, p := range snapshot {
		assert.True(t, domain.IsSubject(p.Subject))
	}

	assert.Equal(t, []string{f.snapshot}, f.archiver.paths)
	require.Len(t, f.notifier.digests, 1)
	assert.Contains(t, f.notifier.digests[0], "New papers: 2")
}

func TestPipelineReportsNewRecordsApartFromRepairs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	catalog := newCatalog(t)
	require.NoError(t, catalog.UpsertProcessed(ctx, domain.ProcessedPaper{
		RawPaper: domain.RawPaper{DOI: "10.1/old", Title: "Old paper", Journal: "Data in Brief"},
		TitleCn:  "旧论文",
	}))
	f := newPipelineFixture(t, catalog)
	f.source.entries = []domain.FeedEntry{natureEntry("s41597-025-00001-1", longText("First"))}

	report, err := f.pipeline.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Enriched)
	require.Len(t, f.notifier.digests, 1)
	assert.Contains(t, f.notifier.digests[0], "Newly processed: 1")
}

func TestPipelineSecondRunSkipsWhenNothingChanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newPipelineFixture(t, newCatalog(t))
	f.source.entries = []domain.FeedEntry{natureEntry("s41597-025-00001-1", longText("First"))}

	_, err := f.pipeline.Run(ctx, false)
	require.NoError(t, err)
	calls := f.model.total()

	report, err := f.pipeline.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.Added)
	assert.Equal(t, calls, f.model.total())
	assert.Len(t, f.notifier.digests, 1)

	backups, err := os.ReadDir(f.backups)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestPipelineFullUpdateDoesNotSkip(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, newCatalog(t))

	report, err := f.pipeline.Run(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Zero(t, report.Exported)

	data, err := os.ReadFile(f.snapshot)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestPipelineFailsWhenCatalogUnreachable(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, unreachableCatalog{newCatalog(t)})
	f.source.entries = []domain.FeedEntry{natureEntry("s41597-025-00001-1", longText("First"))}

	_, err := f.pipeline.Run(context.Background(), false)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	assert.Zero(t, f.model.total())
	assert.Empty(t, f.notifier.digests)
}

func TestPipelineFailsWithoutFeeds(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, newCatalog(t))
	f.source.err = domain.ErrNoFeeds

	_, err := f.pipeline.Run(context.Background(), false)
	assert.True(t, errors.Is(err, domain.ErrNoFeeds))
}

func TestPipelineStagesRunIndependently(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newPipelineFixture(t, newCatalog(t))
	f.source.entries = []domain.FeedEntry{natureEntry("s41597-025-00001-1", longText("First"))}

	added, err := f.pipeline.Harvest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	enriched, err := f.pipeline.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, enriched)

	out := filepath.Join(t.TempDir(), "custom.json")
	exported, err := f.pipeline.Export(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.FileExists(t, out)
}
