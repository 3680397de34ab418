package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/scanner"
)

const feedUserAgent = "DataPaperIndex/1.0 (+feed harvester)"

// FeedScanner reads RSS, RDF and Atom feeds through gofeed.
type FeedScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewFeedScanner(client *http.Client, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedScanner{
		client: client,
		logger: logging.Component(logger, "scanner.rss"),
	}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return scanner.DefaultStrategy
}

// Scan fetches one feed and extracts an entry per item.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedEntry, error) {
	if req.FeedURL == "" {
		return nil, fmt.Errorf("no feed url for journal %s", req.Journal)
	}

	feed, err := f.fetchFeed(ctx, req.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", req.Journal, err)
	}

	entries := make([]domain.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, extractEntry(itemFields(item), req.Journal))
	}
	f.logger.Debug("feed parsed", "journal", req.Journal, "items", len(entries))
	return entries, nil
}

func (f *FeedScanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	// gofeed parsers are stateful; one per fetch.
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
