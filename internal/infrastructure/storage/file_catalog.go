package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/ports"
)

// FileCatalog keeps both tables in one JSON document. It serves single-host
// deployments and tests; every mutation rewrites the file.
type FileCatalog struct {
	mu   sync.Mutex
	path string
}

var _ ports.Catalog = (*FileCatalog)(nil)

type fileRecord struct {
	DOI              string `json:"doi"`
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	PublishDate      string `json:"publish_date"`
	URL              string `json:"url"`
	Authors          string `json:"authors"`
	Tags             string `json:"tags"`
	Journal          string `json:"journal"`
	AbstractSource   string `json:"abstract_source,omitempty"`
	TitleCn          string `json:"title_cn,omitempty"`
	InterpretationCn string `json:"interpretation_cn,omitempty"`
	Subject          string `json:"subject,omitempty"`
}

type fileState struct {
	Raw       []fileRecord `json:"raw"`
	Processed []fileRecord `json:"processed"`
}

// NewFileCatalog stores the catalog at path. The file is created on first write.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

// Ping verifies the catalog document is readable.
func (c *FileCatalog) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.load()
	return err
}

func (c *FileCatalog) KnownDOIs(_ context.Context) (map[string]struct{}, error) {
	known := map[string]struct{}{}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return known, err
	}
	for _, r := range st.Raw {
		if r.DOI != "" {
			known[r.DOI] = struct{}{}
		}
	}
	return known, nil
}

func (c *FileCatalog) GetRaw(_ context.Context, doi string) (domain.RawPaper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return domain.RawPaper{}, err
	}
	if i := indexOf(st.Raw, doi); i >= 0 {
		return st.Raw[i].raw(), nil
	}
	return domain.RawPaper{}, domain.ErrNotFound
}

// UpsertRaw replaces the record with the same DOI or appends a new one.
// Records without a DOI are always appended.
func (c *FileCatalog) UpsertRaw(_ context.Context, p domain.RawPaper) error {
	return c.mutate(func(st *fileState) error {
		st.Raw = upsertRecord(st.Raw, fromRaw(p))
		return nil
	})
}

func (c *FileCatalog) UpsertProcessed(_ context.Context, p domain.ProcessedPaper) error {
	if !p.HasDOI() {
		return fmt.Errorf("upsert processed: %w", errMissingDOI)
	}
	return c.mutate(func(st *fileState) error {
		st.Processed = upsertRecord(st.Processed, fromProcessed(p))
		return nil
	})
}

func (c *FileCatalog) GetUnprocessedRaw(_ context.Context) ([]domain.RawPaper, error) {
	papers := []domain.RawPaper{}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return papers, err
	}
	done := make(map[string]struct{}, len(st.Processed))
	for _, p := range st.Processed {
		done[p.DOI] = struct{}{}
	}
	for _, r := range st.Raw {
		if r.DOI == "" {
			continue
		}
		if _, ok := done[r.DOI]; !ok {
			papers = append(papers, r.raw())
		}
	}
	return papers, nil
}

func (c *FileCatalog) GetIncompleteProcessed(_ context.Context) ([]domain.ProcessedPaper, error) {
	return c.filterProcessed(func(p domain.ProcessedPaper) bool { return !p.Complete() }, false)
}

// GetAllProcessed returns the processed set, newest first.
func (c *FileCatalog) GetAllProcessed(_ context.Context) ([]domain.ProcessedPaper, error) {
	return c.filterProcessed(func(domain.ProcessedPaper) bool { return true }, true)
}

func (c *FileCatalog) GetByDOI(_ context.Context, doi string) (domain.ProcessedPaper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return domain.ProcessedPaper{}, err
	}
	if i := indexOf(st.Processed, doi); i >= 0 {
		return st.Processed[i].processed(), nil
	}
	return domain.ProcessedPaper{}, domain.ErrNotFound
}

// SearchByKeyword matches case-insensitively against the searchable fields.
func (c *FileCatalog) SearchByKeyword(_ context.Context, keyword string) ([]domain.ProcessedPaper, error) {
	return c.filterProcessed(func(p domain.ProcessedPaper) bool { return matchesKeyword(p, keyword) }, true)
}

func (c *FileCatalog) GetBySubject(_ context.Context, subject string) ([]domain.ProcessedPaper, error) {
	return c.filterProcessed(func(p domain.ProcessedPaper) bool { return p.Subject == subject }, true)
}

func (c *FileCatalog) ListSubjects(ctx context.Context) ([]string, error) {
	papers, err := c.GetAllProcessed(ctx)
	if err != nil {
		return []string{}, err
	}
	return distinctSubjects(papers), nil
}

func (c *FileCatalog) ExportSnapshot(ctx context.Context, path string) (int, error) {
	papers, err := c.GetAllProcessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("export snapshot: %w", err)
	}
	return WriteSnapshot(path, papers)
}

func (c *FileCatalog) filterProcessed(keep func(domain.ProcessedPaper) bool, newestFirst bool) ([]domain.ProcessedPaper, error) {
	papers := []domain.ProcessedPaper{}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return papers, err
	}
	for _, r := range st.Processed {
		if p := r.processed(); keep(p) {
			papers = append(papers, p)
		}
	}
	if newestFirst {
		sortNewestFirst(papers)
	}
	return papers, nil
}

func (c *FileCatalog) mutate(fn func(*fileState) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("%w: write catalog: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *FileCatalog) load() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("%w: read catalog: %w", domain.ErrStoreUnavailable, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, fmt.Errorf("%w: decode catalog: %w", domain.ErrStoreUnavailable, err)
	}
	return st, nil
}

func upsertRecord(records []fileRecord, rec fileRecord) []fileRecord {
	if rec.DOI != "" {
		if i := indexOf(records, rec.DOI); i >= 0 {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func indexOf(records []fileRecord, doi string) int {
	if doi == "" {
		return -1
	}
	for i, r := range records {
		if r.DOI == doi {
			return i
		}
	}
	return -1
}

func fromRaw(p domain.RawPaper) fileRecord {
	return fileRecord{
		DOI:            strings.TrimSpace(p.DOI),
		Title:          p.Title,
		Abstract:       p.Abstract,
		PublishDate:    p.PublishDate,
		URL:            p.URL,
		Authors:        p.Authors,
		Tags:           p.Tags,
		Journal:        p.Journal,
		AbstractSource: p.AbstractSource,
	}
}

func fromProcessed(p domain.ProcessedPaper) fileRecord {
	rec := fromRaw(p.RawPaper)
	rec.AbstractSource = ""
	rec.TitleCn = p.TitleCn
	rec.InterpretationCn = p.InterpretationCn
	rec.Subject = p.Subject
	return rec
}

func (r fileRecord) raw() domain.RawPaper {
	return domain.RawPaper{
		DOI:            r.DOI,
		Title:          r.Title,
		Abstract:       r.Abstract,
		PublishDate:    r.PublishDate,
		URL:            r.URL,
		Authors:        r.Authors,
		Tags:           r.Tags,
		Journal:        r.Journal,
		AbstractSource: r.AbstractSource,
	}
}

func (r fileRecord) processed() domain.ProcessedPaper {
	return domain.ProcessedPaper{
		RawPaper:         r.raw(),
		TitleCn:          r.TitleCn,
		InterpretationCn: r.InterpretationCn,
		Subject:          r.Subject,
	}
}

func matchesKeyword(p domain.ProcessedPaper, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return true
	}
	for _, field := range []string{p.Title, p.TitleCn, p.Abstract, p.InterpretationCn, p.Tags, p.Authors} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

func sortNewestFirst(papers []domain.ProcessedPaper) {
	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].PublishDate != papers[j].PublishDate {
			return papers[i].PublishDate > papers[j].PublishDate
		}
		return papers[i].DOI < papers[j].DOI
	})
}

func distinctSubjects(papers []domain.ProcessedPaper) []string {
	seen := map[string]struct{}{}
	subjects := []string{}
	for _, p := range papers {
		if p.Subject == "" {
			continue
		}
		if _, ok := seen[p.Subject]; ok {
			continue
		}
		seen[p.Subject] = struct{}{}
		subjects = append(subjects, p.Subject)
	}
	sort.Strings(subjects)
	return subjects
}
