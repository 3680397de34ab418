package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

const defaultBatchSize = 5

// EnricherDeps wires the model and catalog plus the cooperative throttle.
type EnricherDeps struct {
	Catalog        ports.Catalog
	Model          ports.ModelCaller
	CallPause      time.Duration
	BatchPause     time.Duration
	BatchSize      int
	DefaultJournal string
	Logger         *slog.Logger
}

// Enricher derives the translated title, summary, tags and subject.
type Enricher struct {
	catalog        ports.Catalog
	model          ports.ModelCaller
	callPause      time.Duration
	batchPause     time.Duration
	batchSize      int
	defaultJournal string
	logger         *slog.Logger

	lastNew int
}

// NewEnricher constructs the enrichment use case.
func NewEnricher(deps EnricherDeps) *Enricher {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Enricher{
		catalog:        deps.Catalog,
		model:          deps.Model,
		callPause:      deps.CallPause,
		batchPause:     deps.BatchPause,
		batchSize:      batchSize,
		defaultJournal: deps.DefaultJournal,
		logger:         logging.Component(deps.Logger, "enricher"),
	}
}

// WithLogger returns a copy that logs through logger.
func (e *Enricher) WithLogger(logger *slog.Logger) *Enricher {
	cp := *e
	cp.logger = logging.Component(logger, "enricher")
	cp.lastNew = 0
	return &cp
}

// Enrich runs the new-record pass and then the repair pass. Every record is
// upserted on its own so earlier successes survive a later failure. The
// returned count covers records written by either pass; LastNew reports the
// first pass alone.
func (e *Enricher) Enrich(ctx context.Context, unprocessed []domain.RawPaper, incomplete []domain.ProcessedPaper) (int, error) {
	updated, processed := 0, 0
	e.lastNew = 0

	for _, raw := range unprocessed {
		if err := e.throttle(ctx, &processed); err != nil {
			return updated, err
		}
		paper := e.enrichNew(ctx, raw)
		if e.store(ctx, paper) {
			updated++
			e.lastNew = updated
		}
	}
	e.logger.Info("new records enriched", "count", len(unprocessed), "stored", updated)

	repaired := 0
	for _, paper := range incomplete {
		if err := e.throttle(ctx, &processed); err != nil {
			return updated + repaired, err
		}
		fixed, changed := e.repair(ctx, paper)
		if changed && e.store(ctx, fixed) {
			repaired++
		}
	}
	e.logger.Info("incomplete records repaired", "count", len(incomplete), "stored", repaired)

	return updated + repaired, nil
}

// LastNew is the number of previously unprocessed records stored by the most
// recent Enrich call.
func (e *Enricher) LastNew() int {
	return e.lastNew
}

func (e *Enricher) enrichNew(ctx context.Context, raw domain.RawPaper) domain.ProcessedPaper {
	paper := domain.NewProcessedPaper(raw)
	if paper.Journal == "" {
		paper.Journal = e.defaultJournal
	}
	if strings.TrimSpace(raw.Title) == "" {
		e.logger.Warn("raw paper has no title, storing without derived fields", "doi", raw.DOI)
		return paper
	}

	source := raw.SourceText()
	paper.TitleCn = e.call(ctx, raw.Title, domain.TaskTranslate)
	paper.InterpretationCn = e.call(ctx, source, domain.TaskInterpret)
	if strings.TrimSpace(raw.Tags) == "" {
		paper.Tags = domain.JoinTags(domain.SplitTags(e.call(ctx, source, domain.TaskGenerateTags)))
	}
	paper.Subject = e.call(ctx, source, domain.TaskClassify)
	return paper
}

// repair fills only the empty fields and reports whether anything changed.
func (e *Enricher) repair(ctx context.Context, paper domain.ProcessedPaper) (domain.ProcessedPaper, bool) {
	changed := false

	if strings.TrimSpace(paper.Abstract) == "" && paper.HasDOI() {
		raw, err := e.catalog.GetRaw(ctx, paper.DOI)
		switch {
		case err == nil && strings.TrimSpace(raw.Abstract) != "":
			paper.Abstract = raw.Abstract
			changed = true
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			e.logger.Warn("load raw paper for repair", "doi", paper.DOI, "error", err)
		}
	}
	if paper.Journal == "" && e.defaultJournal != "" {
		paper.Journal = e.defaultJournal
		changed = true
	}

	for _, task := range paper.MissingFields() {
		text := paper.SourceText()
		if task == domain.TaskTranslate {
			text = paper.Title
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		out := e.call(ctx, text, task)
		if out == "" {
			continue
		}
		switch task {
		case domain.TaskTranslate:
			paper.TitleCn = out
		case domain.TaskInterpret:
			paper.InterpretationCn = out
		case domain.TaskGenerateTags:
			paper.Tags = domain.JoinTags(domain.SplitTags(out))
		case domain.TaskClassify:
			paper.Subject = out
		}
		changed = true
	}
	return paper, changed
}

func (e *Enricher) call(ctx context.Context, text string, task domain.Task) string {
	out := e.model.CallModel(ctx, text, task)
	if task == domain.TaskClassify && out != "" {
		out, _ = domain.CoerceSubject(out)
	}
	if out == "" {
		e.logger.Warn("field not derived this run", "task", task)
	}
	_ = sleep(ctx, e.callPause)
	return out
}

func (e *Enricher) store(ctx context.Context, paper domain.ProcessedPaper) bool {
	if err := e.catalog.UpsertProcessed(ctx, paper); err != nil {
		e.logger.Error("store processed paper", "doi", paper.DOI, "error", err)
		return false
	}
	return true
}

// throttle pauses longer after every batch of processed items.
func (e *Enricher) throttle(ctx context.Context, processed *int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if *processed > 0 && *processed%e.batchSize == 0 {
		if err := sleep(ctx, e.batchPause); err != nil {
			return err
		}
	}
	*processed++
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
