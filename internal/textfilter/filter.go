// Package textfilter strips non-abstract noise (citation lines, DOI lines,
// author lists, repeated titles) from text pulled out of feeds and pages.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"
)

// Rule drops a single line when Drop returns true.
type Rule struct {
	Name string
	Drop func(line, title string) bool
}

var (
	citationExpr = regexp.MustCompile(`^\p{Lu}[\p{L}\d .&-]*,\s*(Published online\b|Vol\.|Volume\s+\d)`)
	doiLineExpr  = regexp.MustCompile(`(?i)^(doi:?\s*|https?://(dx\.)?doi\.org/)10\.\S+$`)
	labelExpr    = regexp.MustCompile(`(?i)^abstract\b[\s:.\-]*`)
)

// DefaultRules is the rule list applied when a Filter is built without rules.
var DefaultRules = []Rule{
	{Name: "citation", Drop: dropCitation},
	{Name: "doi", Drop: dropDOI},
	{Name: "title", Drop: dropTitle},
	{Name: "authors", Drop: dropAuthors},
}

// Filter applies an ordered rule list line by line.
type Filter struct {
	rules []Rule
}

// New builds a filter; without arguments it uses DefaultRules.
func New(rules ...Rule) *Filter {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Filter{rules: rules}
}

// Apply drops matching lines and returns the cleaned, single-line text.
func (f *Filter) Apply(text, title string) string {
	kept := make([]string, 0, 8)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || f.drops(line, title) {
			continue
		}
		kept = append(kept, line)
	}
	return Clean(strings.Join(kept, " "), title)
}

func (f *Filter) drops(line, title string) bool {
	for _, r := range f.rules {
		if r.Drop(line, title) {
			return true
		}
	}
	return false
}

// Clean collapses whitespace, strips a leading "Abstract" label and removes
// embedded repetitions of the title.
func Clean(text, title string) string {
	text = collapse(text)
	text = labelExpr.ReplaceAllString(text, "")
	if title = collapse(title); title != "" {
		text = collapse(strings.ReplaceAll(text, title, ""))
	}
	return strings.TrimSpace(text)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dropCitation matches journal citation headers such as
// "Scientific Data, Published online: 14 March 2025; doi:10.1038/...".
// A line ending in a full stop is prose unless it carries a doi.
func dropCitation(line, _ string) bool {
	if strings.HasSuffix(line, ".") && !strings.Contains(strings.ToLower(line), "doi:") {
		return false
	}
	return strings.HasPrefix(line, "Scientific Data,") || citationExpr.MatchString(line)
}

func dropDOI(line, _ string) bool {
	return doiLineExpr.MatchString(line)
}

func dropTitle(line, title string) bool {
	title = collapse(title)
	return title != "" && strings.EqualFold(collapse(line), title)
}

// dropAuthors matches name lists: several short capitalized chunks joined by
// commas, "&" or "and", with no sentence punctuation at the end.
func dropAuthors(line, _ string) bool {
	if len(line) > 400 || strings.HasSuffix(line, ".") {
		return false
	}
	normalized := strings.ReplaceAll(line, " & ", ", ")
	normalized = strings.ReplaceAll(normalized, " and ", ", ")
	parts := strings.Split(normalized, ",")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		words := strings.Fields(part)
		if len(words) > 4 {
			return false
		}
		for _, w := range words {
			first := []rune(w)[0]
			if !unicode.IsUpper(first) {
				return false
			}
		}
	}
	return true
}
