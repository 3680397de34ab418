package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
)

func configFor(driver, pathOrDSN string) config.DatabaseConfig {
	if driver == "file" {
		return config.DatabaseConfig{Driver: driver, Path: pathOrDSN}
	}
	return config.DatabaseConfig{Driver: driver, DSN: pathOrDSN}
}

func newFileCatalog(t *testing.T) *FileCatalog {
	t.Helper()
	return NewFileCatalog(filepath.Join(t.TempDir(), "catalog.json"))
}

func processed(doi, title, date, subject string) domain.ProcessedPaper {
	return domain.ProcessedPaper{
		RawPaper:         domain.RawPaper{DOI: doi, Title: title, PublishDate: date, Tags: "土壤,遥感"},
		TitleCn:          title + "（中文）",
		InterpretationCn: "总结",
		Subject:          subject,
	}
}

func TestFileCatalogUpsertRawIsKeyedByDOI(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newFileCatalog(t)
	p := samplePaper()

	require.NoError(t, c.UpsertRaw(ctx, p))
	p.Abstract = "An updated abstract."
	require.NoError(t, c.UpsertRaw(ctx, p))

	known, err := c.KnownDOIs(ctx)
	require.NoError(t, err)
	assert.Len(t, known, 1)

	got, err := c.GetRaw(ctx, p.DOI)
	require.NoError(t, err)
	assert.Equal(t, "An updated abstract.", got.Abstract)
}

func TestFileCatalogRecordsWithoutDOIAreAppended(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newFileCatalog(t)
	p := domain.RawPaper{Title: "No identifier"}

	require.NoError(t, c.UpsertRaw(ctx, p))
	require.NoError(t, c.UpsertRaw(ctx, p))

	st, err := c.load()
	require.NoError(t, err)
	assert.Len(t, st.Raw, 2)

	known, err := c.KnownDOIs(ctx)
	require.NoError(t, err)
	assert.Empty(t, known)

	unprocessed, err := c.GetUnprocessedRaw(ctx)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestFileCatalogUnprocessedAndIncomplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newFileCatalog(t)
	require.NoError(t, c.UpsertRaw(ctx, domain.RawPaper{DOI: "a", Title: "A"}))
	require.NoError(t, c.UpsertRaw(ctx, domain.RawPaper{DOI: "b", Title: "B"}))
	require.NoError(t, c.UpsertProcessed(ctx, processed("a", "A", "2025-01-01", "生态学")))

	unprocessed, err := c.GetUnprocessedRaw(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "b", unprocessed[0].DOI)

	incomplete, err := c.GetIncompleteProcessed(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)

	partial := processed("b", "B", "2025-01-02", "")
	require.NoError(t, c.UpsertProcessed(ctx, partial))
	incomplete, err = c.GetIncompleteProcessed(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, []domain.Task{domain.TaskClassify}, incomplete[0].MissingFields())
}

func TestFileCatalogReadPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newFileCatalog(t)
	require.NoError(t, c.UpsertProcessed(ctx, processed("a", "Soil moisture", "2025-01-01", "土壤学")))
	require.NoError(t, c.UpsertProcessed(ctx, processed("b", "Ocean heat", "2025-03-01", "海洋科学")))
	require.NoError(t, c.UpsertProcessed(ctx, processed("c", "Forest SOIL carbon", "2025-02-01", "生态学")))

	all, err := c.GetAllProcessed(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].DOI, all[1].DOI, all[2].DOI})

	found, err := c.SearchByKeyword(ctx, "soil")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	bySubject, err := c.GetBySubject(ctx, "海洋科学")
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, "b", bySubject[0].DOI)

	one, err := c.GetByDOI(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "Forest SOIL carbon", one.Title)

	_, err = c.GetByDOI(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	subjects, err := c.ListSubjects(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"土壤学", "海洋科学", "生态学"}, subjects)
}

func TestFileCatalogCorruptFileIsUnavailable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	c := NewFileCatalog(path)

	papers, err := c.GetAllProcessed(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotNil(t, papers)
	assert.Error(t, c.Ping(context.Background()))
}

func TestFileCatalogExportSnapshotFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newFileCatalog(t)
	require.NoError(t, c.UpsertProcessed(ctx, processed("a", "Soil", "2025-01-01", "土壤学")))

	path := filepath.Join(t.TempDir(), "out", "papers.json")
	n, err := c.ExportSnapshot(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	for _, key := range []string{"title", "titleCn", "interpretationCn", "publishDate", "doi", "url", "authors", "tags", "Subject", "journal", "abstract"} {
		assert.Contains(t, records[0], key)
	}
	assert.Equal(t, []any{"土壤", "遥感"}, records[0]["tags"])
}
