package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/uniplaces/carbon"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/ports"
)

const backupLayout = "20060102_150405"

// SnapshotRecord is one entry of the exported interchange file. Field names
// are consumed by the presentation layer and must stay stable.
type SnapshotRecord struct {
	Title            string   `json:"title"`
	TitleCn          string   `json:"titleCn"`
	InterpretationCn string   `json:"interpretationCn"`
	PublishDate      string   `json:"publishDate"`
	DOI              string   `json:"doi"`
	URL              string   `json:"url"`
	Authors          string   `json:"authors"`
	Tags             []string `json:"tags"`
	Subject          string   `json:"Subject"`
	Journal          string   `json:"journal"`
	Abstract         string   `json:"abstract"`
}

func toSnapshotRecord(p domain.ProcessedPaper) SnapshotRecord {
	return SnapshotRecord{
		Title:            p.Title,
		TitleCn:          p.TitleCn,
		InterpretationCn: p.InterpretationCn,
		PublishDate:      p.PublishDate,
		DOI:              p.DOI,
		URL:              p.URL,
		Authors:          p.Authors,
		Tags:             p.TagList(),
		Subject:          p.Subject,
		Journal:          p.Journal,
		Abstract:         p.Abstract,
	}
}

func (r SnapshotRecord) paper() domain.ProcessedPaper {
	return domain.ProcessedPaper{
		RawPaper: domain.RawPaper{
			DOI:         r.DOI,
			Title:       r.Title,
			Abstract:    r.Abstract,
			PublishDate: r.PublishDate,
			URL:         r.URL,
			Authors:     r.Authors,
			Tags:        domain.JoinTags(r.Tags),
			Journal:     r.Journal,
		},
		TitleCn:          r.TitleCn,
		InterpretationCn: r.InterpretationCn,
		Subject:          r.Subject,
	}
}

// WriteSnapshot serializes papers to path and returns how many were written.
// An empty set produces "[]".
func WriteSnapshot(path string, papers []domain.ProcessedPaper) (int, error) {
	records := make([]SnapshotRecord, 0, len(papers))
	for _, p := range papers {
		records = append(records, toSnapshotRecord(p))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	return len(records), nil
}

// ReadSnapshot loads a previously exported snapshot.
func ReadSnapshot(path string) ([]domain.ProcessedPaper, error) {
	f, err := os.Open(path)
	if err != nil {
		return []domain.ProcessedPaper{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var records []SnapshotRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return []domain.ProcessedPaper{}, fmt.Errorf("decode snapshot: %w", err)
	}

	papers := make([]domain.ProcessedPaper, 0, len(records))
	for _, r := range records {
		papers = append(papers, r.paper())
	}
	return papers, nil
}

// BackupSnapshot copies the snapshot at path into dir under a timestamped
// name. A missing snapshot is not an error and yields an empty name.
func BackupSnapshot(path, dir string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	target := filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, carbon.Now().Format(backupLayout), ext))
	if err := writeFileAtomic(target, data); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return target, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SnapshotFiles binds the export location to its backup directory.
type SnapshotFiles struct {
	Path      string
	BackupDir string
}

var _ ports.SnapshotBackup = SnapshotFiles{}

func (s SnapshotFiles) Backup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return BackupSnapshot(s.Path, s.BackupDir)
}
