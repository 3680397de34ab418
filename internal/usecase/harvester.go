package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/htmltext"
	"DataPaperIndex/internal/journal"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
	"DataPaperIndex/internal/textfilter"
)

const defaultMinAbstractLength = 50

// HarvesterDeps wires the feed source, catalog and backfill adapters.
type HarvesterDeps struct {
	Source            ports.EntrySource
	Catalog           ports.Catalog
	Backfill          ports.AbstractFetcher
	Identifier        ports.JournalIdentifier
	Filter            *textfilter.Filter
	Profiles          []journal.Profile
	MinAbstractLength int
	Logger            *slog.Logger
}

// Harvester turns feed entries into deduplicated raw records.
type Harvester struct {
	source     ports.EntrySource
	catalog    ports.Catalog
	backfill   ports.AbstractFetcher
	identifier ports.JournalIdentifier
	filter     *textfilter.Filter
	profiles   []journal.Profile
	minLength  int
	logger     *slog.Logger

	lastAdded int
}

// NewHarvester constructs the harvesting use case.
func NewHarvester(deps HarvesterDeps) *Harvester {
	filter := deps.Filter
	if filter == nil {
		filter = textfilter.New()
	}
	minLength := deps.MinAbstractLength
	if minLength <= 0 {
		minLength = defaultMinAbstractLength
	}
	profiles := deps.Profiles
	if profiles == nil {
		profiles = journal.DefaultProfiles()
	}
	return &Harvester{
		source:     deps.Source,
		catalog:    deps.Catalog,
		backfill:   deps.Backfill,
		identifier: deps.Identifier,
		filter:     filter,
		profiles:   profiles,
		minLength:  minLength,
		logger:     logging.Component(deps.Logger, "harvester"),
	}
}

// WithLogger returns a copy that logs through logger, e.g. with a run id.
func (h *Harvester) WithLogger(logger *slog.Logger) *Harvester {
	cp := *h
	cp.logger = logging.Component(logger, "harvester")
	cp.lastAdded = 0
	return &cp
}

// LastAdded is the net-new count of the most recent Harvest call.
func (h *Harvester) LastAdded() int {
	return h.lastAdded
}

// Harvest fetches every feed and stores entries whose DOI is new. Entries
// with a known DOI skip backfill and only refresh the stored record. Failures
// on one entry are logged and never abort the rest.
func (h *Harvester) Harvest(ctx context.Context) (int, error) {
	h.lastAdded = 0

	entries, err := h.source.FetchEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch entries: %w", err)
	}

	known, err := h.catalog.KnownDOIs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load known dois: %w", err)
	}

	added, refreshed := 0, 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		doi := strings.TrimSpace(entry.DOI)
		if _, seen := known[doi]; seen && doi != "" {
			ok, err := h.refresh(ctx, entry, doi)
			if err != nil {
				h.logger.Warn("refresh failed", "doi", doi, "error", err)
				continue
			}
			if ok {
				refreshed++
			}
			continue
		}

		entry.Journal = h.identify(ctx, entry)
		paper, _ := h.normalize(entry)
		paper = h.maybeBackfill(ctx, entry, paper)

		if err := h.catalog.UpsertRaw(ctx, paper); err != nil {
			h.logger.Error("store raw paper", "doi", doi, "title", paper.Title, "error", err)
			continue
		}
		if doi != "" {
			known[doi] = struct{}{}
		}
		added++
	}

	h.lastAdded = added
	h.logger.Info("harvest finished", "entries", len(entries), "added", added, "refreshed", refreshed)
	return added, nil
}

// identify follows the article link to name the journal when neither the
// feed nor the link itself says which one it is.
func (h *Harvester) identify(ctx context.Context, entry domain.FeedEntry) string {
	if entry.Journal != "" || h.identifier == nil {
		return entry.Journal
	}
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return ""
	}
	if name, ok := journal.MatchJournal(link); ok {
		return name
	}
	return h.identifier.Identify(ctx, link)
}

// normalize converts a feed entry into a raw record without any network I/O.
// The boolean is false when the publish date fell back to today.
func (h *Harvester) normalize(entry domain.FeedEntry) (domain.RawPaper, bool) {
	title := strings.Join(strings.Fields(entry.Title), " ")
	doi := strings.TrimSpace(entry.DOI)

	name := entry.Journal
	if name == "" {
		if matched, ok := journal.MatchJournal(entry.Link); ok {
			name = matched
		} else {
			name = journal.JournalFromDOI(doi)
		}
	}

	date, dateOK := journal.NormalizeDateLayouts(entry.Published, h.layouts(name))
	if !dateOK {
		h.logger.Warn("unparseable publish date, using today", "doi", doi, "raw", entry.Published, "journal", name)
	}

	paper := domain.RawPaper{
		DOI:         doi,
		Title:       title,
		Abstract:    h.filter.Apply(htmltext.ToLines(entry.Description), title),
		PublishDate: date,
		URL:         strings.TrimSpace(entry.Link),
		Authors:     strings.TrimSpace(entry.Authors),
		Tags:        domain.JoinTags(entry.Tags),
		Journal:     name,
	}
	if paper.Abstract != "" {
		paper.AbstractSource = domain.AbstractFromFeed
	}
	return paper, dateOK
}

// maybeBackfill keeps the feed abstract unless a page scrape produced a
// strictly longer text, which is then marked as backfilled.
func (h *Harvester) maybeBackfill(ctx context.Context, entry domain.FeedEntry, paper domain.RawPaper) domain.RawPaper {
	if h.backfill == nil || !h.needsBackfill(paper) {
		return paper
	}

	ref := backfillRef(paper.DOI, entry.Link)
	if ref == "" {
		return paper
	}

	res := h.backfill.FetchAbstract(ctx, ref, paper.Journal)
	switch res.Status {
	case domain.AbstractFound:
		if utf8.RuneCountInString(res.Abstract) > utf8.RuneCountInString(paper.Abstract) {
			paper.Abstract = res.Abstract
			paper.AbstractSource = domain.AbstractFromPage
		}
	case domain.AbstractNotFound:
		h.logger.Warn("abstract not found", "ref", ref, "journal", res.Journal)
	default:
		h.logger.Warn("abstract backfill failed", "ref", ref, "error", res.Err)
	}
	return paper
}

func (h *Harvester) needsBackfill(p domain.RawPaper) bool {
	if strings.TrimSpace(p.Abstract) == "" {
		return true
	}
	return utf8.RuneCountInString(p.Abstract) < h.minLength && !journal.IsReliable(p.Journal, h.profiles)
}

// refresh merges feed changes into an already stored record. It reports
// whether anything was written.
func (h *Harvester) refresh(ctx context.Context, entry domain.FeedEntry, doi string) (bool, error) {
	stored, err := h.catalog.GetRaw(ctx, doi)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	fresh, dateOK := h.normalize(entry)
	merged := mergeRaw(stored, fresh, dateOK)
	if merged == stored {
		return false, nil
	}
	if err := h.catalog.UpsertRaw(ctx, merged); err != nil {
		return false, err
	}
	h.logger.Debug("raw paper refreshed", "doi", doi)
	return true, nil
}

func (h *Harvester) layouts(name string) []string {
	for _, p := range h.profiles {
		if p.Name == name {
			return p.DateLayouts
		}
	}
	return nil
}

// mergeRaw keeps stored values unless the feed now carries a non-empty one.
// A feed abstract always replaces an earlier feed abstract; a backfilled one
// is only replaced by a longer feed text.
func mergeRaw(stored, fresh domain.RawPaper, dateParsed bool) domain.RawPaper {
	merged := stored
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&merged.Title, fresh.Title)
	override(&merged.URL, fresh.URL)
	override(&merged.Authors, fresh.Authors)
	override(&merged.Tags, fresh.Tags)
	if stored.Journal == "" || stored.Journal == journal.Unknown {
		override(&merged.Journal, fresh.Journal)
	}
	if dateParsed {
		merged.PublishDate = fresh.PublishDate
	}

	if fresh.Abstract != "" && fresh.Abstract != stored.Abstract {
		backfilled := stored.AbstractSource == domain.AbstractFromPage
		if !backfilled || utf8.RuneCountInString(fresh.Abstract) > utf8.RuneCountInString(stored.Abstract) {
			merged.Abstract = fresh.Abstract
			merged.AbstractSource = domain.AbstractFromFeed
		}
	}
	return merged
}

// backfillRef prefers a real DOI and otherwise uses the article link.
func backfillRef(doi, link string) string {
	if strings.HasPrefix(doi, "10.") {
		return doi
	}
	return strings.TrimSpace(link)
}
