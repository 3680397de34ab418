package parser

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"DataPaperIndex/internal/domain"
)

// accessor reads one candidate value from a normalized item mapping.
type accessor func(fields map[string]string) string

var linkDOIExpr = regexp.MustCompile(`(?:doi\.org/|articles/)([^?#\s]+)`)

// Accessor tables, evaluated in order until one yields a non-empty value.
// Feed quirks are handled by adding entries here.
var (
	titleAccessors       = []accessor{key("title"), key("dc:title")}
	descriptionAccessors = []accessor{key("content"), key("content:encoded"), key("description"), key("summary"), key("dc:description")}
	doiAccessors         = []accessor{identifierDOI("dc:identifier"), identifierDOI("prism:doi"), guidDOI, linkDOI}
	dateAccessors        = []accessor{key("published"), key("pubDate"), key("dc:date"), key("prism:publicationDate"), key("updated")}
	authorAccessors      = []accessor{key("dc:creator"), key("author")}
	categoryAccessors    = []accessor{key("category"), key("dc:subject")}
)

func resolve(fields map[string]string, accessors []accessor) string {
	for _, get := range accessors {
		if v := strings.TrimSpace(get(fields)); v != "" {
			return v
		}
	}
	return ""
}

func key(name string) accessor {
	return func(fields map[string]string) string {
		return fields[name]
	}
}

func identifierDOI(name string) accessor {
	return func(fields map[string]string) string {
		return cleanDOI(fields[name])
	}
}

func guidDOI(fields map[string]string) string {
	guid := strings.TrimSpace(fields["guid"])
	if !looksLikeDOI(guid) {
		return ""
	}
	return cleanDOI(guid)
}

// linkDOI takes everything after doi.org/ or articles/ in the article URL.
func linkDOI(fields map[string]string) string {
	match := linkDOIExpr.FindStringSubmatch(fields["link"])
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSuffix(match[1], "/")
}

func looksLikeDOI(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "10.") || strings.HasPrefix(lower, "doi:") || strings.Contains(lower, "doi.org/")
}

func cleanDOI(v string) string {
	v = strings.TrimSpace(v)
	if idx := strings.Index(strings.ToLower(v), "doi.org/"); idx >= 0 {
		v = v[idx+len("doi.org/"):]
	}
	if strings.HasPrefix(strings.ToLower(v), "doi:") {
		v = v[len("doi:"):]
	}
	return strings.TrimSpace(v)
}

// itemFields flattens a gofeed item, including namespaced extensions, into
// one mapping keyed by the feed's field names.
func itemFields(item *gofeed.Item) map[string]string {
	fields := map[string]string{
		"title":       item.Title,
		"link":        item.Link,
		"guid":        item.GUID,
		"content":     item.Content,
		"description": item.Description,
		"published":   item.Published,
		"updated":     item.Updated,
		"category":    strings.Join(item.Categories, ","),
	}

	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			names = append(names, strings.TrimSpace(a.Name))
		}
	}
	fields["author"] = strings.Join(names, ", ")

	if dc := item.DublinCoreExt; dc != nil {
		setFirst(fields, "dc:identifier", dc.Identifier)
		setFirst(fields, "dc:title", dc.Title)
		setFirst(fields, "dc:date", dc.Date)
		setFirst(fields, "dc:description", dc.Description)
		if len(dc.Creator) > 0 {
			fields["dc:creator"] = strings.Join(dc.Creator, ", ")
		}
		if len(dc.Subject) > 0 {
			fields["dc:subject"] = strings.Join(dc.Subject, ",")
		}
	}

	for prefix, byName := range item.Extensions {
		for name, exts := range byName {
			k := prefix + ":" + name
			if _, taken := fields[k]; taken {
				continue
			}
			for _, ext := range exts {
				if v := strings.TrimSpace(ext.Value); v != "" {
					fields[k] = v
					break
				}
			}
		}
	}

	return fields
}

func setFirst(fields map[string]string, k string, values []string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			fields[k] = v
			return
		}
	}
}

// extractEntry applies the accessor tables to a normalized mapping.
func extractEntry(fields map[string]string, journalName string) domain.FeedEntry {
	return domain.FeedEntry{
		Journal:     journalName,
		Title:       resolve(fields, titleAccessors),
		Description: resolve(fields, descriptionAccessors),
		DOI:         resolve(fields, doiAccessors),
		Link:        strings.TrimSpace(fields["link"]),
		Published:   resolve(fields, dateAccessors),
		Authors:     resolve(fields, authorAccessors),
		Tags:        domain.SplitTags(resolve(fields, categoryAccessors)),
	}
}
