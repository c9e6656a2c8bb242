package rss

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newshound/internal/services"
	"newshound/internal/sources"
)

const (
	// Kind identifies this adapter in the registry and in stored items.
	Kind = "rss"

	defaultHTTPTimeout = 20 * time.Second
	maxExternalIDLen   = 500
)

// Config captures the runtime settings for feed fetching.
type Config struct {
	TimeoutSeconds int
}

// Adapter implements sources.Adapter for RSS and Atom feeds. The author of
// a feed subscription is the feed URL itself.
type Adapter struct {
	httpClient *http.Client
}

// Option customizes the adapter.
type Option func(*Adapter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// New constructs an rss adapter from the supplied configuration.
func New(cfg Config, opts ...Option) *Adapter {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	adapter := &Adapter{
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

// Kind returns the source kind this adapter serves.
func (a *Adapter) Kind() string { return Kind }

// Cost reports zero for every operation; feeds are free to poll.
func (a *Adapter) Cost(sources.Operation) int { return 0 }

// Search is unsupported for feeds and returns no candidates.
func (a *Adapter) Search(context.Context, string, int) ([]sources.Candidate, error) {
	return nil, nil
}

// FetchForAuthor fetches and parses the feed at the given URL.
func (a *Adapter) FetchForAuthor(ctx context.Context, feedURL string, limit int) ([]sources.Candidate, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, services.Wrap(services.ErrValidation, "rss", "fetch", "feed url required", nil)
	}
	if limit <= 0 {
		limit = 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: new request: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", "newshound/1.0 (+https://github.com/newshound/newshound)")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: read body: %w", feedURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("rss fetch %s: http %d", feedURL, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, services.Wrap(services.ErrTransient, "", "", err.Error(), nil)
		}
		return nil, err
	}

	candidates, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("rss parse %s: %w", feedURL, err)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Author      string `xml:"author"`
	PubDate     string `xml:"pubDate"`
	Enclosure   struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID    string `xml:"id"`
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func parseFeed(body []byte) ([]sources.Candidate, error) {
	var rssDoc rssDocument
	if err := xml.Unmarshal(body, &rssDoc); err == nil {
		return fromRSS(&rssDoc), nil
	}

	var atomDoc atomFeed
	if err := xml.Unmarshal(body, &atomDoc); err == nil {
		return fromAtom(&atomDoc), nil
	}

	return nil, fmt.Errorf("neither RSS 2.0 nor Atom")
}

func fromRSS(doc *rssDocument) []sources.Candidate {
	feedTitle := strings.TrimSpace(doc.Channel.Title)
	candidates := make([]sources.Candidate, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		author := firstNonEmpty(item.Creator, item.Author, feedTitle)
		candidate := sources.Candidate{
			ExternalID: externalID(item.GUID, item.Link, item.Title),
			Source:     Kind,
			Title:      strings.TrimSpace(item.Title),
			Body:       firstNonEmpty(item.Content, item.Description),
			URL:        strings.TrimSpace(item.Link),
			Author:     sources.Author{Name: author, ID: author},
		}
		if item.Enclosure.URL != "" {
			candidate.Media = append(candidate.Media, item.Enclosure.URL)
		}
		if published, ok := parseFeedTime(item.PubDate); ok {
			candidate.PublishedAt = &published
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func fromAtom(doc *atomFeed) []sources.Candidate {
	feedTitle := strings.TrimSpace(doc.Title)
	candidates := make([]sources.Candidate, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		author := firstNonEmpty(entry.Author.Name, feedTitle)
		candidate := sources.Candidate{
			ExternalID: externalID(entry.ID, entryLink(entry), entry.Title),
			Source:     Kind,
			Title:      strings.TrimSpace(entry.Title),
			Body:       firstNonEmpty(entry.Content, entry.Summary),
			URL:        entryLink(entry),
			Author:     sources.Author{Name: author, ID: author},
		}
		if published, ok := parseFeedTime(firstNonEmpty(entry.Published, entry.Updated)); ok {
			candidate.PublishedAt = &published
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func entryLink(entry atomEntry) string {
	for _, link := range entry.Links {
		if link.Rel == "" || link.Rel == "alternate" {
			return strings.TrimSpace(link.Href)
		}
	}
	if len(entry.Links) > 0 {
		return strings.TrimSpace(entry.Links[0].Href)
	}
	return ""
}

// externalID prefers the feed's own identifier, falls back to the link, and
// hashes as a last resort. Oversized identifiers are hashed so the natural
// key stays indexable.
func externalID(guid, link, title string) string {
	id := firstNonEmpty(guid, link)
	if id == "" {
		id = hashString(title + link)
	}
	if len(id) > maxExternalIDLen {
		id = hashString(id)
	}
	return id
}

func hashString(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
}

func parseFeedTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range feedTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ sources.Adapter = (*Adapter)(nil)
