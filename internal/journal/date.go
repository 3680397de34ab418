package journal

import (
	"regexp"
	"strings"
	"time"

	"github.com/uniplaces/carbon"
)

// CanonicalLayout is the only date form persisted in the catalog.
const CanonicalLayout = "2006-01-02"

var genericLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2006",
}

var isoDateExpr = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// NormalizeDate parses a feed date using the journal's preferred layouts first.
// The boolean is false when every strategy failed and today's date was used.
func NormalizeDate(raw, journalHint string) (string, bool) {
	profile, _ := LookupProfile(journalHint)
	return NormalizeDateLayouts(raw, profile.DateLayouts)
}

// NormalizeDateLayouts is NormalizeDate with explicit journal layouts.
func NormalizeDateLayouts(raw string, layouts []string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, group := range [][]string{layouts, genericLayouts} {
			for _, layout := range group {
				if parsed, err := time.Parse(layout, raw); err == nil {
					return parsed.Format(CanonicalLayout), true
				}
			}
		}
		if match := isoDateExpr.FindString(raw); match != "" {
			if _, err := time.Parse(CanonicalLayout, match); err == nil {
				return match, true
			}
		}
	}
	return carbon.Now().DateString(), false
}
