package domain

// FeedEntry is a feed item as extracted, before dedup and normalization.
// Description still carries the feed's markup.
type FeedEntry struct {
	Journal     string
	Title       string
	Description string
	DOI         string
	Link        string
	Published   string
	Authors     string
	Tags        []string
}

// AbstractStatus classifies the outcome of a landing-page lookup.
type AbstractStatus int

const (
	AbstractFound AbstractStatus = iota
	AbstractNotFound
	AbstractFailed
)

func (s AbstractStatus) String() string {
	switch s {
	case AbstractFound:
		return "found"
	case AbstractNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// AbstractResult is the typed outcome of a backfill. Abstract is empty unless
// Status is AbstractFound; Err is set only for AbstractFailed.
type AbstractResult struct {
	Status   AbstractStatus
	Abstract string
	Journal  string
	URL      string
	Err      error
}
