// Package htmltext turns feed and page markup into line-preserving plain text.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6, tr, section, article"

// ToLines renders markup as text with one line per block element or <br>.
// Input without markup comes back with entities decoded.
func ToLines(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Text())
}

// SelectionText joins the text of every matched node, one line each. Nested
// block elements also start new lines.
func SelectionText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		clone := s.Clone()
		clone.Find("br").ReplaceWithHtml("\n")
		clone.Find(blockSelector).AppendHtml("\n")
		if text := strings.TrimSpace(clone.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
