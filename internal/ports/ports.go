package ports

import (
	"context"
	"time"

	"DataPaperIndex/internal/domain"
)

// EntrySource pulls raw feed entries from every configured journal.
type EntrySource interface {
	FetchEntries(ctx context.Context) ([]domain.FeedEntry, error)
}

// AbstractFetcher recovers abstracts from publisher landing pages.
type AbstractFetcher interface {
	FetchAbstract(ctx context.Context, doiOrURL, journalHint string) domain.AbstractResult
}

// JournalIdentifier names the journal behind an article URL; it never fails
// and answers "unknown" when every heuristic is exhausted.
type JournalIdentifier interface {
	Identify(ctx context.Context, url string) string
}

// ModelCaller derives one text field; an empty string means "not derived".
type ModelCaller interface {
	CallModel(ctx context.Context, text string, task domain.Task) string
}

// CatalogReader is the read side consumed by the presentation layer.
type CatalogReader interface {
	GetAllProcessed(ctx context.Context) ([]domain.ProcessedPaper, error)
	GetByDOI(ctx context.Context, doi string) (domain.ProcessedPaper, error)
	SearchByKeyword(ctx context.Context, query string) ([]domain.ProcessedPaper, error)
	GetBySubject(ctx context.Context, subject string) ([]domain.ProcessedPaper, error)
	ListSubjects(ctx context.Context) ([]string, error)
}

// Catalog persists raw and processed papers keyed by DOI.
type Catalog interface {
	CatalogReader
	Ping(ctx context.Context) error
	KnownDOIs(ctx context.Context) (map[string]struct{}, error)
	GetRaw(ctx context.Context, doi string) (domain.RawPaper, error)
	UpsertRaw(ctx context.Context, paper domain.RawPaper) error
	UpsertProcessed(ctx context.Context, paper domain.ProcessedPaper) error
	GetUnprocessedRaw(ctx context.Context) ([]domain.RawPaper, error)
	GetIncompleteProcessed(ctx context.Context) ([]domain.ProcessedPaper, error)
	ExportSnapshot(ctx context.Context, path string) (int, error)
}

// Archiver ships exported snapshots to durable off-host storage.
type Archiver interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// SnapshotBackup keeps a copy of the previous export before a run replaces it.
type SnapshotBackup interface {
	Backup(ctx context.Context) (string, error)
}
