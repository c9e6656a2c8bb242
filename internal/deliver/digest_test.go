package deliver

import (
	"strings"
	"testing"

	"newshound/internal/enrich"
	"newshound/internal/storage"
)

func TestBuildDigestGroupsBySource(t *testing.T) {
	items := []*storage.Item{
		{
			Source:       "twitter",
			Title:        "Go 1.26 released",
			Body:         "The release ships profile-guided inlining improvements.",
			Author:       "golang",
			URL:          "https://x.com/i/status/1",
			QualityScore: 0.91,
			MetricsJSON:  `{"likes": 2400, "retweets": 310}`,
			AnalysisJSON: `{"summary": "Major toolchain release.", "key_points": ["faster builds", "smaller binaries"]}`,
		},
		{
			Source:       "youtube",
			Title:        "Deep dive: io_uring",
			Body:         "A long walkthrough.",
			Author:       "kernel-channel",
			URL:          "https://www.youtube.com/watch?v=abc",
			QualityScore: 0.74,
		},
		{
			Source:       "twitter",
			Title:        "sqlite tips",
			Body:         "WAL mode explained.",
			QualityScore: 0.6,
		},
	}

	digest := BuildDigest(items, nil)

	twitterAt := strings.Index(digest, "## Twitter")
	youtubeAt := strings.Index(digest, "## Youtube")
	if twitterAt < 0 || youtubeAt < 0 {
		t.Fatalf("missing source headings:\n%s", digest)
	}
	if twitterAt > youtubeAt {
		t.Fatal("sources must keep first-appearance order")
	}
	if strings.Count(digest, "## Twitter") != 1 {
		t.Fatal("both twitter items must share one heading")
	}
	for _, want := range []string{
		"### Go 1.26 released",
		"Major toolchain release.",
		"- faster builds",
		"@golang",
		"likes 2.4K",
		"[open](https://x.com/i/status/1)",
		"### Deep dive: io_uring",
		"A long walkthrough.",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}
}

func TestBuildDigestLeadsWithSummary(t *testing.T) {
	summary := &enrich.BatchSummary{
		OverallSummary: "Busy morning in systems land.",
		HotTopics: []enrich.HotTopic{
			{Topic: "io_uring", Description: "three posts on async IO"},
		},
		KeyInsights:    []string{"kernel content trending up"},
		Recommendation: "watch the io_uring talk first",
	}
	items := []*storage.Item{{Source: "rss", Title: "post", Body: "b", QualityScore: 0.5}}

	digest := BuildDigest(items, summary)

	overviewAt := strings.Index(digest, "## Overview")
	rssAt := strings.Index(digest, "## Rss")
	if overviewAt < 0 || rssAt < 0 || overviewAt > rssAt {
		t.Fatalf("overview must lead the digest:\n%s", digest)
	}
	for _, want := range []string{
		"Busy morning in systems land.",
		"**io_uring**: three posts on async IO",
		"- kernel content trending up",
		"_watch the io_uring talk first_",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}
}

func TestBuildDigestFallsBackToBodyExcerpt(t *testing.T) {
	long := strings.Repeat("word ", 120)
	items := []*storage.Item{{Source: "rss", Body: long, QualityScore: 0.3}}

	digest := BuildDigest(items, nil)
	if !strings.Contains(digest, "...") {
		t.Fatalf("long body must be truncated:\n%s", digest)
	}
	if strings.Contains(digest, long) {
		t.Fatal("full body must not appear")
	}
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		42:        "42",
		1500:      "1.5K",
		2_400_000: "2.4M",
	}
	for value, want := range cases {
		if got := formatCount(value); got != want {
			t.Fatalf("formatCount(%d) = %q, want %q", value, got, want)
		}
	}
}
