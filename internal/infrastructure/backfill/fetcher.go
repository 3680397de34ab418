// Package backfill recovers abstracts from publisher landing pages when the
// feed does not carry a usable one.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/htmltext"
	"DataPaperIndex/internal/journal"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
	"DataPaperIndex/internal/textfilter"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultResolverURL = "https://doi.org/"
	browserUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// selector is one extraction attempt; attr reads an attribute instead of text.
type selector struct {
	query string
	attr  string
}

var journalSelectors = map[string][]selector{
	journal.NatureScientificData: {
		{query: `div#Abs1-content, section[data-title="Abstract"] p`},
		{query: "div.c-article-section__content p"},
	},
	journal.EarthSystemScienceData: {
		{query: "div.abstract p, div.abstract-content p"},
	},
	journal.GeoscienceDataJournal: {
		{query: "section.article-section__abstract div.article-section__content p"},
	},
	journal.DataInBrief: {
		{query: "div.abstract.author div p, div#abstracts div.abstract p"},
	},
}

var genericSelectors = []selector{
	{query: "div.abstract p"},
	{query: "div#abstract"},
	{query: "section.abstract"},
	{query: `div[class*="abstract"]`},
	{query: `meta[name="description"]`, attr: "content"},
}

// Fetcher implements AbstractFetcher over plain HTTP and goquery.
type Fetcher struct {
	client      *http.Client
	resolverURL string
	filter      *textfilter.Filter
	logger      *slog.Logger
}

var _ ports.AbstractFetcher = (*Fetcher)(nil)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithResolverURL replaces the DOI resolver prefix.
func WithResolverURL(base string) Option {
	return func(f *Fetcher) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		f.resolverURL = base
	}
}

// WithFilter replaces the default text filter.
func WithFilter(filter *textfilter.Filter) Option {
	return func(f *Fetcher) {
		f.filter = filter
	}
}

// NewFetcher wires an HTTP client; a nil client gets a bounded default.
func NewFetcher(client *http.Client, logger *slog.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	f := &Fetcher{
		client:      client,
		resolverURL: defaultResolverURL,
		filter:      textfilter.New(),
		logger:      logging.Component(logger, "backfill"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAbstract resolves a DOI or URL and extracts the abstract. Non-200
// pages and pages without a match yield AbstractNotFound; transport and
// parse problems yield AbstractFailed. It never panics or returns an error.
func (f *Fetcher) FetchAbstract(ctx context.Context, doiOrURL, journalHint string) domain.AbstractResult {
	target := f.toURL(doiOrURL)
	if target == "" {
		return domain.AbstractResult{Status: domain.AbstractFailed, Journal: journal.Unknown, Err: errors.New("empty doi or url")}
	}
	result := domain.AbstractResult{Journal: journal.Unknown, URL: target}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return f.failed(result, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return f.failed(result, fmt.Errorf("request page: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("landing page unavailable", "url", target, "status", resp.StatusCode)
		result.Status = domain.AbstractNotFound
		return result
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	result.Journal = identify(journalHint, finalURL, doiOrURL)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return f.failed(result, fmt.Errorf("parse page: %w", err))
	}

	abstract := f.filter.Apply(extract(doc, result.Journal), pageTitle(doc))
	if abstract == "" {
		f.logger.Warn("abstract not found", "url", finalURL, "journal", result.Journal)
		result.Status = domain.AbstractNotFound
		return result
	}

	f.logger.Debug("abstract found", "url", finalURL, "journal", result.Journal, "length", len(abstract))
	result.Status = domain.AbstractFound
	result.Abstract = abstract
	return result
}

func (f *Fetcher) failed(result domain.AbstractResult, err error) domain.AbstractResult {
	f.logger.Warn("abstract fetch failed", "url", result.URL, "error", err)
	result.Status = domain.AbstractFailed
	result.Err = err
	return result
}

func (f *Fetcher) toURL(doiOrURL string) string {
	ref := strings.TrimSpace(doiOrURL)
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "doi:"))
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return f.resolverURL + ref
}

func identify(hint, finalURL, ref string) string {
	if hint != "" && hint != journal.Unknown {
		return hint
	}
	if name, ok := journal.MatchJournal(finalURL); ok {
		return name
	}
	return journal.JournalFromDOI(ref)
}

// extract tries the journal's own selectors, then the generic list.
func extract(doc *goquery.Document, journalName string) string {
	tiers := append(append([]selector{}, journalSelectors[journalName]...), genericSelectors...)
	for _, sel := range tiers {
		matched := doc.Find(sel.query)
		if matched.Length() == 0 {
			continue
		}
		var text string
		if sel.attr != "" {
			text, _ = matched.First().Attr(sel.attr)
		} else {
			text = htmltext.SelectionText(matched)
		}
		if strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func pageTitle(doc *goquery.Document) string {
	if title, ok := doc.Find(`meta[name="citation_title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
