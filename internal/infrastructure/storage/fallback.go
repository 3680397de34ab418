package storage

import (
	"context"
	"errors"
	"log/slog"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

// FallbackCatalog serves reads from the primary catalog and, when it fails,
// from the last exported snapshot.
type FallbackCatalog struct {
	primary  ports.CatalogReader
	snapshot string
	logger   *slog.Logger
}

var _ ports.CatalogReader = (*FallbackCatalog)(nil)

func NewFallbackCatalog(primary ports.CatalogReader, snapshotPath string, logger *slog.Logger) *FallbackCatalog {
	return &FallbackCatalog{
		primary:  primary,
		snapshot: snapshotPath,
		logger:   logging.Component(logger, "catalog-fallback"),
	}
}

func (f *FallbackCatalog) GetAllProcessed(ctx context.Context) ([]domain.ProcessedPaper, error) {
	papers, err := f.primary.GetAllProcessed(ctx)
	if err == nil {
		return papers, nil
	}
	return f.fromSnapshot("all", err, func(domain.ProcessedPaper) bool { return true })
}

func (f *FallbackCatalog) GetByDOI(ctx context.Context, doi string) (domain.ProcessedPaper, error) {
	paper, err := f.primary.GetByDOI(ctx, doi)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return paper, err
	}
	papers, snapErr := f.fromSnapshot("doi", err, func(p domain.ProcessedPaper) bool { return p.DOI == doi })
	if snapErr != nil {
		return domain.ProcessedPaper{}, snapErr
	}
	if len(papers) == 0 {
		return domain.ProcessedPaper{}, domain.ErrNotFound
	}
	return papers[0], nil
}

func (f *FallbackCatalog) SearchByKeyword(ctx context.Context, keyword string) ([]domain.ProcessedPaper, error) {
	papers, err := f.primary.SearchByKeyword(ctx, keyword)
	if err == nil {
		return papers, nil
	}
	return f.fromSnapshot("search", err, func(p domain.ProcessedPaper) bool { return matchesKeyword(p, keyword) })
}

func (f *FallbackCatalog) GetBySubject(ctx context.Context, subject string) ([]domain.ProcessedPaper, error) {
	papers, err := f.primary.GetBySubject(ctx, subject)
	if err == nil {
		return papers, nil
	}
	return f.fromSnapshot("subject", err, func(p domain.ProcessedPaper) bool { return p.Subject == subject })
}

func (f *FallbackCatalog) ListSubjects(ctx context.Context) ([]string, error) {
	subjects, err := f.primary.ListSubjects(ctx)
	if err == nil {
		return subjects, nil
	}
	papers, snapErr := f.fromSnapshot("subjects", err, func(domain.ProcessedPaper) bool { return true })
	if snapErr != nil {
		return []string{}, snapErr
	}
	return distinctSubjects(papers), nil
}

// fromSnapshot returns the primary error when the snapshot cannot be read
// either, so callers still see the store as unavailable.
func (f *FallbackCatalog) fromSnapshot(op string, primaryErr error, keep func(domain.ProcessedPaper) bool) ([]domain.ProcessedPaper, error) {
	f.logger.Warn("catalog read failed, serving snapshot", "op", op, "error", primaryErr)

	all, err := ReadSnapshot(f.snapshot)
	if err != nil {
		f.logger.Error("snapshot unavailable", "path", f.snapshot, "error", err)
		return []domain.ProcessedPaper{}, primaryErr
	}

	papers := make([]domain.ProcessedPaper, 0, len(all))
	for _, p := range all {
		if keep(p) {
			papers = append(papers, p)
		}
	}
	sortNewestFirst(papers)
	return papers, nil
}
