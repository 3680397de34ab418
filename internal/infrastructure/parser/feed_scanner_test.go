package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/scanner"
)

const natureFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:prism="http://prismstandard.org/namespaces/basic/2.0/"
  xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Scientific Data</title>
  <item>
    <title>A global soil moisture dataset</title>
    <link>https://www.nature.com/articles/s41597-025-00001-1</link>
    <guid>https://www.nature.com/articles/s41597-025-00001-1</guid>
    <description><![CDATA[<p>Scientific Data, Published online: 14 March 2025</p><p>We present soil moisture.</p>]]></description>
    <pubDate>Fri, 14 Mar 2025 00:00:00 GMT</pubDate>
    <category>Hydrology</category>
    <category>Soil</category>
  </item>
  <item>
    <title>Ocean heat content reanalysis</title>
    <link>https://www.nature.com/articles/s41597-025-00002-2</link>
    <dc:identifier>doi:10.1038/s41597-025-00002-2</dc:identifier>
    <dc:creator>Jane Doe</dc:creator>
    <dc:creator>John Smith</dc:creator>
    <dc:date>2025-03-15</dc:date>
    <content:encoded><![CDATA[<p>Full content wins.</p>]]></content:encoded>
    <description>Short description.</description>
  </item>
  <item>
    <title>Glacier inventory</title>
    <link>https://example.org/view?id=3</link>
    <guid isPermaLink="false">doi:10.5194/essd-17-3-2025</guid>
    <prism:doi>10.5194/essd-17-3-2025</prism:doi>
    <pubDate>Mon, 17 Mar 2025 10:00:00 +0100</pubDate>
  </item>
</channel>
</rss>`

func TestFeedScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(natureFeed))
	}))
	defer server.Close()

	sc := NewFeedScanner(server.Client(), nil)
	entries, err := sc.Scan(context.Background(), scanner.Request{Journal: "Nature Scientific Data", FeedURL: server.URL})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "s41597-025-00001-1", first.DOI)
	assert.Equal(t, "A global soil moisture dataset", first.Title)
	assert.Contains(t, first.Description, "We present soil moisture.")
	assert.Equal(t, "Fri, 14 Mar 2025 00:00:00 GMT", first.Published)
	assert.Equal(t, []string{"Hydrology", "Soil"}, first.Tags)
	assert.Equal(t, "Nature Scientific Data", first.Journal)

	second := entries[1]
	assert.Equal(t, "10.1038/s41597-025-00002-2", second.DOI)
	assert.Equal(t, "<p>Full content wins.</p>", second.Description)
	assert.Equal(t, "Jane Doe, John Smith", second.Authors)

	third := entries[2]
	assert.Equal(t, "10.5194/essd-17-3-2025", third.DOI)
	assert.Equal(t, "Mon, 17 Mar 2025 10:00:00 +0100", third.Published)
}

func TestFeedScannerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	sc := NewFeedScanner(server.Client(), nil)
	_, err := sc.Scan(context.Background(), scanner.Request{Journal: "x", FeedURL: server.URL})
	assert.ErrorContains(t, err, "410")

	_, err = sc.Scan(context.Background(), scanner.Request{Journal: "x"})
	assert.Error(t, err)
}

func TestDOIAccessors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"identifier", map[string]string{"dc:identifier": "doi:10.1/a", "guid": "10.2/b"}, "10.1/a"},
		{"prism", map[string]string{"prism:doi": "10.3/c"}, "10.3/c"},
		{"guid doi url", map[string]string{"guid": "https://doi.org/10.4/d"}, "10.4/d"},
		{"guid not doi", map[string]string{"guid": "urn:uuid:1", "link": "https://doi.org/10.5/e"}, "10.5/e"},
		{"articles path", map[string]string{"link": "https://www.nature.com/articles/s41597-025-00001-1"}, "s41597-025-00001-1"},
		{"trailing slash", map[string]string{"link": "https://essd.copernicus.org/articles/17/1/2025/"}, "17/1/2025"},
		{"none", map[string]string{"link": "https://example.org/x"}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resolve(tc.fields, doiAccessors), tc.name)
	}
}

func TestDescriptionPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "summary", resolve(map[string]string{"summary": "summary", "dc:description": "dc"}, descriptionAccessors))
	assert.Equal(t, "dc", resolve(map[string]string{"content": "  ", "dc:description": "dc"}, descriptionAccessors))
}

type fakeScanner struct {
	name  string
	calls atomic.Int32
	fail  map[string]bool
}

func (f *fakeScanner) Name() string { return f.name }

func (f *fakeScanner) Scan(_ context.Context, req scanner.Request) ([]domain.FeedEntry, error) {
	f.calls.Add(1)
	if f.fail[req.Journal] {
		return nil, assert.AnError
	}
	return []domain.FeedEntry{{Title: req.Journal + " paper", DOI: req.Journal}}, nil
}

func TestStrategySourceSkipsFailingJournals(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{name: "rss", fail: map[string]bool{"B": true}}
	reg := scanner.NewRegistry()
	reg.Register(fake)

	src := NewStrategySource(reg, []config.JournalConfig{
		{Name: "A", Feed: "http://a"},
		{Name: "B", Feed: "http://b"},
		{Name: "C", Feed: "http://c", Scanner: "rss"},
		{Name: "D", Feed: "http://d", Scanner: "missing"},
		{Name: "E"},
	}, 2, nil)

	entries, err := src.FetchEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Journal)
	assert.Equal(t, "C", entries[1].Journal)
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestStrategySourceWithoutFeeds(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), []config.JournalConfig{{Name: "empty"}}, 0, nil)
	_, err := src.FetchEntries(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoFeeds)
}
