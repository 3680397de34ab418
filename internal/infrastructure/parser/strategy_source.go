package parser

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
	"DataPaperIndex/internal/scanner"
)

const defaultFeedConcurrency = 4

// StrategySource implements EntrySource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	journals    []config.JournalConfig
	concurrency int
	logger      *slog.Logger
}

var _ ports.EntrySource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined journals.
func NewStrategySource(reg *scanner.Registry, journals []config.JournalConfig, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = defaultFeedConcurrency
	}
	return &StrategySource{
		registry:    reg,
		journals:    journals,
		concurrency: concurrency,
		logger:      logging.Component(log, "source"),
	}
}

// FetchEntries reads every journal feed, a bounded number at a time. A failing
// journal is logged and skipped; entries keep the configured journal order.
func (s *StrategySource) FetchEntries(ctx context.Context) ([]domain.FeedEntry, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	active := make([]config.JournalConfig, 0, len(s.journals))
	for _, j := range s.journals {
		if j.Feed == "" {
			s.logger.Warn("journal has no feed url", "journal", j.Name)
			continue
		}
		active = append(active, j)
	}
	if len(active) == 0 {
		return nil, domain.ErrNoFeeds
	}

	s.logger.Debug("fetch entries", "journals", len(active))

	results := make([][]domain.FeedEntry, len(active))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, j := range active {
		g.Go(func() error {
			results[i] = s.scanJournal(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	var aggregated []domain.FeedEntry
	for _, entries := range results {
		aggregated = append(aggregated, entries...)
	}
	s.debug("strategy source done", "total_entries", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) scanJournal(ctx context.Context, j config.JournalConfig) []domain.FeedEntry {
	strategy, err := s.registry.Resolve(j.Scanner)
	if err != nil {
		s.logger.Warn("journal skipped", "journal", j.Name, "error", err)
		return nil
	}

	entries, err := strategy.Scan(ctx, scanner.Request{
		Journal: j.Name,
		FeedURL: j.Feed,
		Options: j.Options,
	})
	if err != nil {
		s.logger.Warn("feed fetch failed", "journal", j.Name, "error", err)
		return nil
	}

	for i := range entries {
		if entries[i].Journal == "" {
			entries[i].Journal = j.Name
		}
	}
	s.debug("journal produced entries", "journal", j.Name, "count", len(entries))
	return entries
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
