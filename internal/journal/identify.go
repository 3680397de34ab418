package journal

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultResolveTimeout = 10 * time.Second
	userAgent             = "Mozilla/5.0 (compatible; DataPaperIndex/1.0)"
)

// rule inspects a lowercased host and path and names the journal on a hit.
type rule func(host, path string) (string, bool)

// rules is evaluated in order; the most specific journal paths come first.
var rules = []rule{
	matchNatureScientificData,
	matchNature,
	matchCopernicus,
	matchWiley,
	matchElsevier,
	hostRule("science.org", "Science"),
	hostRule("pnas.org", "PNAS"),
	hostRule("springeropen.com", "Springer Journal"),
	hostRule("springer.com", "Springer Journal"),
}

// MatchJournal runs the rule table against a URL without touching the network.
func MatchJournal(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	for _, r := range rules {
		if name, ok := r(host, path); ok {
			return name, true
		}
	}
	return "", false
}

// JournalFromDOI guesses the publisher from a bare DOI or a URL embedding one.
func JournalFromDOI(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "doi:"))

	var tail string
	switch {
	case strings.HasPrefix(ref, "10."):
		tail = ref[len("10."):]
	case strings.Contains(ref, "/10."):
		tail = ref[strings.Index(ref, "/10.")+len("/10."):]
	default:
		return Unknown
	}

	lower := strings.ToLower(tail)
	switch {
	case strings.HasPrefix(lower, "1038/s41597"):
		return NatureScientificData
	case strings.HasPrefix(lower, "5194/essd"):
		return EarthSystemScienceData
	case strings.HasPrefix(lower, "1002/gdj3"):
		return GeoscienceDataJournal
	case strings.HasPrefix(lower, "1016/j.dib"):
		return DataInBrief
	}

	publisher := strings.SplitN(tail, "/", 2)[0]
	if publisher == "" {
		return Unknown
	}
	return strings.ToUpper(publisher) + " Journal"
}

// Resolver identifies journals, following redirects to the publisher page.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

// NewResolver wires an HTTP client; a nil client gets a bounded default.
func NewResolver(client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: defaultResolveTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// Identify names the journal behind a URL. Network failures degrade to the
// unresolved URL and then to DOI heuristics; the result is never empty.
func (r *Resolver) Identify(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Unknown
	}
	if strings.Contains(rawURL, "doi.org/10.1038/s41597") {
		return NatureScientificData
	}

	final := r.finalURL(ctx, rawURL)
	if name, ok := MatchJournal(final); ok {
		return name
	}
	return JournalFromDOI(rawURL)
}

func (r *Resolver) finalURL(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("resolve redirect failed", "url", rawURL, "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}

func matchNatureScientificData(host, path string) (string, bool) {
	if !strings.Contains(host, "nature.com") {
		return "", false
	}
	if strings.Contains(path, "/sdata/") || strings.Contains(host, "scientificdata") ||
		strings.Contains(path, "scientificdata") || strings.Contains(path, "s41597") {
		return NatureScientificData, true
	}
	return "", false
}

func matchNature(host, path string) (string, bool) {
	if !strings.Contains(host, "nature.com") {
		return "", false
	}
	switch segment := firstSegment(path); segment {
	case "", "nature", "news", "articles":
		return "Nature", true
	case "sdata":
		return NatureScientificData, true
	default:
		return "Nature " + strings.ToUpper(segment[:1]) + segment[1:], true
	}
}

func matchCopernicus(host, path string) (string, bool) {
	if !strings.Contains(host, "copernicus.org") {
		return "", false
	}
	if strings.HasPrefix(host, "essd.") || strings.Contains(path, "/essd/") {
		return EarthSystemScienceData, true
	}
	if sub := strings.Split(host, ".")[0]; sub != "copernicus" && sub != "www" {
		return "Copernicus " + strings.ToUpper(sub), true
	}
	if segment := firstSegment(path); segment != "" {
		return "Copernicus " + strings.ToUpper(segment), true
	}
	return "Copernicus Journal", true
}

func matchWiley(host, path string) (string, bool) {
	if !strings.Contains(host, "wiley.com") {
		return "", false
	}
	if strings.Contains(path, "gdj3") {
		return GeoscienceDataJournal, true
	}
	return "Wiley Journal", true
}

func matchElsevier(host, path string) (string, bool) {
	if !strings.Contains(host, "sciencedirect.com") && !strings.Contains(host, "elsevier.com") {
		return "", false
	}
	if strings.Contains(path, "s2352340") || strings.Contains(path, "data-in-brief") {
		return DataInBrief, true
	}
	return "Elsevier Journal", true
}

func hostRule(fragment, name string) rule {
	return func(host, _ string) (string, bool) {
		if strings.Contains(host, fragment) {
			return name, true
		}
		return "", false
	}
}

func firstSegment(path string) string {
	return strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
}
