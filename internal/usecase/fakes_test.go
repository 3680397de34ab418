package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/infrastructure/storage"
)

type fakeSource struct {
	entries []domain.FeedEntry
	err     error
}

func (f *fakeSource) FetchEntries(context.Context) ([]domain.FeedEntry, error) {
	return f.entries, f.err
}

type fakeBackfill struct {
	mu      sync.Mutex
	results map[string]domain.AbstractResult
	refs    []string
}

func (f *fakeBackfill) FetchAbstract(_ context.Context, ref, _ string) domain.AbstractResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	if res, ok := f.results[ref]; ok {
		return res
	}
	return domain.AbstractResult{Status: domain.AbstractNotFound}
}

type fakeModel struct {
	mu        sync.Mutex
	responses map[domain.Task]string
	calls     map[domain.Task]int
	texts     map[domain.Task][]string
}

func newFakeModel(responses map[domain.Task]string) *fakeModel {
	return &fakeModel{
		responses: responses,
		calls:     map[domain.Task]int{},
		texts:     map[domain.Task][]string{},
	}
}

func (f *fakeModel) CallModel(_ context.Context, text string, task domain.Task) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[task]++
	f.texts[task] = append(f.texts[task], text)
	return f.responses[task]
}

func (f *fakeModel) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeArchiver struct{ paths []string }

func (f *fakeArchiver) Upload(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return "snapshots/papers.json.gz", nil
}

type fakeNotifier struct{ digests []string }

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}

func newCatalog(t *testing.T) *storage.FileCatalog {
	t.Helper()
	return storage.NewFileCatalog(filepath.Join(t.TempDir(), "catalog.json"))
}

func longText(prefix string) string {
	return prefix + " describes a curated global dataset of observations, its processing chain and validation against independent measurements."
}
