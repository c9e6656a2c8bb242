package rss_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newshound/internal/sources/rss"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Systems Weekly</title>
    <item>
      <title>Memory ordering in practice</title>
      <link>https://blog.example/ordering</link>
      <guid>https://blog.example/ordering</guid>
      <description>A short summary.</description>
      <content:encoded>The full article body with much more detail.</content:encoded>
      <dc:creator>Pat Writer</dc:creator>
      <pubDate>Tue, 10 Feb 2026 08:30:00 +0000</pubDate>
      <enclosure url="https://blog.example/diagram.png" type="image/png"/>
    </item>
    <item>
      <title>Untitled follow-up</title>
      <link>https://blog.example/followup</link>
      <description>Second post.</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release Notes</title>
  <entry>
    <id>tag:example.org,2026:release-1.5</id>
    <title>v1.5 released</title>
    <link rel="alternate" href="https://example.org/v1.5"/>
    <summary>Bug fixes.</summary>
    <published>2026-02-11T09:00:00Z</published>
    <author><name>Release Bot</name></author>
  </entry>
</feed>`

func serveFeed(t *testing.T, payload string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestFetchForAuthorParsesRSS(t *testing.T) {
	adapter := rss.New(rss.Config{})
	url := serveFeed(t, rssFixture)

	candidates, err := adapter.FetchForAuthor(context.Background(), url, 20)
	if err != nil {
		t.Fatalf("FetchForAuthor: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}

	first := candidates[0]
	if first.ExternalID != "https://blog.example/ordering" {
		t.Fatalf("external id = %s", first.ExternalID)
	}
	if first.Source != "rss" || first.Title != "Memory ordering in practice" {
		t.Fatalf("candidate = %+v", first)
	}
	if !strings.Contains(first.Body, "full article body") {
		t.Fatalf("body should prefer content:encoded, got %q", first.Body)
	}
	if first.Author.Name != "Pat Writer" {
		t.Fatalf("author = %+v", first.Author)
	}
	if first.PublishedAt == nil || first.PublishedAt.Day() != 10 {
		t.Fatalf("published = %v", first.PublishedAt)
	}
	if len(first.Media) != 1 {
		t.Fatalf("media = %v", first.Media)
	}

	second := candidates[1]
	if second.ExternalID != "https://blog.example/followup" {
		t.Fatalf("guidless item should fall back to link, got %s", second.ExternalID)
	}
	if second.Author.Name != "Systems Weekly" {
		t.Fatalf("authorless item should fall back to feed title, got %s", second.Author.Name)
	}
}

func TestFetchForAuthorParsesAtom(t *testing.T) {
	adapter := rss.New(rss.Config{})
	url := serveFeed(t, atomFixture)

	candidates, err := adapter.FetchForAuthor(context.Background(), url, 20)
	if err != nil {
		t.Fatalf("FetchForAuthor: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	entry := candidates[0]
	if entry.ExternalID != "tag:example.org,2026:release-1.5" {
		t.Fatalf("external id = %s", entry.ExternalID)
	}
	if entry.URL != "https://example.org/v1.5" {
		t.Fatalf("url = %s", entry.URL)
	}
	if entry.Author.Name != "Release Bot" || entry.Body != "Bug fixes." {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.PublishedAt == nil {
		t.Fatal("published should parse")
	}
}

func TestFetchForAuthorRejectsGarbage(t *testing.T) {
	adapter := rss.New(rss.Config{})
	url := serveFeed(t, "this is not xml at all {")

	if _, err := adapter.FetchForAuthor(context.Background(), url, 20); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFetchForAuthorLimit(t *testing.T) {
	adapter := rss.New(rss.Config{})
	url := serveFeed(t, rssFixture)

	candidates, err := adapter.FetchForAuthor(context.Background(), url, 1)
	if err != nil {
		t.Fatalf("FetchForAuthor: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want limit of 1", len(candidates))
	}
}

func TestSearchIsUnsupported(t *testing.T) {
	adapter := rss.New(rss.Config{})
	candidates, err := adapter.Search(context.Background(), "anything", 10)
	if err != nil || candidates != nil {
		t.Fatalf("feeds do not search: %v %v", candidates, err)
	}
}
