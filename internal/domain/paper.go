package domain

import "strings"

// RawPaper is a harvested bibliographic record keyed by DOI.
type RawPaper struct {
	DOI         string
	Title       string
	Abstract    string
	PublishDate string
	URL         string
	Authors     string
	Tags        string
	Journal     string

	// AbstractSource records where Abstract came from; raw records only.
	AbstractSource string
}

// Abstract sources kept on raw records.
const (
	AbstractFromFeed = "feed"
	AbstractFromPage = "backfill"
)

// HasDOI reports whether the record participates in DOI-keyed operations.
func (p RawPaper) HasDOI() bool {
	return strings.TrimSpace(p.DOI) != ""
}

// ProcessedPaper is a raw record plus the fields derived by the model.
type ProcessedPaper struct {
	RawPaper
	TitleCn          string
	InterpretationCn string
	Subject          string
}

// NewProcessedPaper seeds a processed record from its raw source.
func NewProcessedPaper(raw RawPaper) ProcessedPaper {
	return ProcessedPaper{RawPaper: raw}
}

// Complete reports whether every derived field has been filled.
func (p ProcessedPaper) Complete() bool {
	return len(p.MissingFields()) == 0
}

// MissingFields lists the derived fields that are still empty.
func (p ProcessedPaper) MissingFields() []Task {
	var missing []Task
	if strings.TrimSpace(p.TitleCn) == "" {
		missing = append(missing, TaskTranslate)
	}
	if strings.TrimSpace(p.InterpretationCn) == "" {
		missing = append(missing, TaskInterpret)
	}
	if strings.TrimSpace(p.Tags) == "" {
		missing = append(missing, TaskGenerateTags)
	}
	if strings.TrimSpace(p.Subject) == "" {
		missing = append(missing, TaskClassify)
	}
	return missing
}

// SourceText picks the text the summary, tags and subject are derived from.
func (p RawPaper) SourceText() string {
	if strings.TrimSpace(p.Abstract) != "" {
		return p.Abstract
	}
	return p.Title
}

// TagList splits the comma-joined tag string.
func (p RawPaper) TagList() []string {
	return SplitTags(p.Tags)
}

// SplitTags splits a comma-joined tag string, accepting the full-width comma
// the model tends to emit.
func SplitTags(tags string) []string {
	tags = strings.ReplaceAll(tags, "，", ",")
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinTags is the inverse of SplitTags.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			clean = append(clean, tag)
		}
	}
	return strings.Join(clean, ",")
}
