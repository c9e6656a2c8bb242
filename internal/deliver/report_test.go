package deliver_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"newshound/internal/deliver"
	"newshound/internal/enrich"
	"newshound/internal/logging"
	"newshound/internal/settings"
	"newshound/internal/storage"
	"newshound/internal/testsupport"
)

type reporterHarness struct {
	store  *storage.Store
	sender *fakeSender
	now    time.Time
}

func newReporter(t *testing.T, summarizer deliver.BatchSummarizer) (*deliver.Reporter, *reporterHarness) {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithDelivery("http://webhook.test"))
	store := testsupport.MustOpenStore(t, cfg)
	logger := slog.New(logging.NoopHandler{})
	sender := &fakeSender{}
	harness := &reporterHarness{
		store:  store,
		sender: sender,
		now:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	reporter := deliver.NewReporter(deliver.ReporterDeps{
		Store:      store,
		Sender:     sender,
		Summarizer: summarizer,
		Settings:   settings.NewResolver(cfg, store, logger),
		Logger:     logger,
		Location:   time.UTC,
	}, deliver.WithReporterClock(func() time.Time { return harness.now }))
	return reporter, harness
}

func reportItem(t *testing.T, store *storage.Store, externalID, source, author string, quality float64, published time.Time) *storage.Item {
	t.Helper()

	item := &storage.Item{
		ExternalID:   externalID,
		Source:       source,
		Title:        "item " + externalID,
		Body:         "body for " + externalID,
		Author:       author,
		URL:          "https://example.test/" + externalID,
		QualityScore: quality,
		PublishedAt:  &published,
	}
	if _, err := store.UpsertItem(context.Background(), item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	return item
}

func TestRunDailyReportSendsRecap(t *testing.T) {
	reporter, h := newReporter(t, nil)
	ctx := context.Background()

	reportItem(t, h.store, "alpha", "twitter", "alice", 0.9, h.now.Add(-2*time.Hour))
	reportItem(t, h.store, "beta", "twitter", "bob", 0.6, h.now.Add(-5*time.Hour))
	reportItem(t, h.store, "gamma", "youtube", "carol", 0.8, h.now.Add(-20*time.Hour))

	result, err := reporter.RunDailyReport(ctx)
	if err != nil {
		t.Fatalf("RunDailyReport: %v", err)
	}
	if result.Items != 3 {
		t.Fatalf("items = %d, want 3", result.Items)
	}
	if len(h.sender.titles) != 1 {
		t.Fatalf("sends = %d, want exactly one", len(h.sender.titles))
	}
	if h.sender.titles[0] != "Newshound Daily Report 2026-03-01" {
		t.Fatalf("title = %q", h.sender.titles[0])
	}

	body := h.sender.bodies[0]
	if !strings.Contains(body, "Collected: **3** items") {
		t.Fatalf("report missing item count:\n%s", body)
	}
	if !strings.Contains(body, "- Twitter: 2") || !strings.Contains(body, "- Youtube: 1") {
		t.Fatalf("report missing per-source counts:\n%s", body)
	}
	if !strings.Contains(body, "1. **item alpha** - @alice [open](https://example.test/alpha)") {
		t.Fatalf("best item must lead the top list:\n%s", body)
	}
	if strings.Index(body, "item alpha") > strings.Index(body, "item beta") {
		t.Fatalf("top list must be ordered by quality:\n%s", body)
	}
}

func TestRunDailyReportExcludesOldItems(t *testing.T) {
	reporter, h := newReporter(t, nil)
	ctx := context.Background()

	reportItem(t, h.store, "fresh", "twitter", "alice", 0.5, h.now.Add(-2*time.Hour))
	reportItem(t, h.store, "stale", "twitter", "bob", 0.9, h.now.Add(-30*time.Hour))

	result, err := reporter.RunDailyReport(ctx)
	if err != nil {
		t.Fatalf("RunDailyReport: %v", err)
	}
	if result.Items != 1 {
		t.Fatalf("items = %d, want only the last 24 hours", result.Items)
	}
	if strings.Contains(h.sender.bodies[0], "item stale") {
		t.Fatalf("stale item must stay out of the report:\n%s", h.sender.bodies[0])
	}
}

func TestRunDailyReportRespectsDisabledSetting(t *testing.T) {
	reporter, h := newReporter(t, nil)
	ctx := context.Background()

	reportItem(t, h.store, "alpha", "twitter", "alice", 0.9, h.now.Add(-time.Hour))
	if err := h.store.PutSetting(ctx, settings.KeyDeliveryEnabled, "false", ""); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}

	result, err := reporter.RunDailyReport(ctx)
	if err != nil {
		t.Fatalf("RunDailyReport: %v", err)
	}
	if !result.Skipped || result.Items != 0 || len(h.sender.titles) != 0 {
		t.Fatalf("result = %+v sends = %d, want skip", result, len(h.sender.titles))
	}
}

func TestRunDailyReportSummaryIsBestEffort(t *testing.T) {
	summarizer := &fakeSummarizer{summary: &enrich.BatchSummary{OverallSummary: "quiet day in infra"}}
	reporter, h := newReporter(t, summarizer)
	ctx := context.Background()

	reportItem(t, h.store, "alpha", "twitter", "alice", 0.9, h.now.Add(-time.Hour))

	if _, err := reporter.RunDailyReport(ctx); err != nil {
		t.Fatalf("RunDailyReport: %v", err)
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", summarizer.calls)
	}
	if !strings.Contains(h.sender.bodies[0], "quiet day in infra") {
		t.Fatalf("report missing overview:\n%s", h.sender.bodies[0])
	}
}

func TestRunWeeklyReportListsActiveAuthors(t *testing.T) {
	reporter, h := newReporter(t, nil)
	ctx := context.Background()

	reportItem(t, h.store, "a1", "twitter", "alice", 0.9, h.now.Add(-24*time.Hour))
	reportItem(t, h.store, "a2", "twitter", "alice", 0.8, h.now.Add(-48*time.Hour))
	reportItem(t, h.store, "a3", "twitter", "alice", 0.7, h.now.Add(-3*24*time.Hour))
	reportItem(t, h.store, "b1", "youtube", "bob", 0.6, h.now.Add(-5*24*time.Hour))

	result, err := reporter.RunWeeklyReport(ctx)
	if err != nil {
		t.Fatalf("RunWeeklyReport: %v", err)
	}
	if result.Items != 4 {
		t.Fatalf("items = %d, want 4", result.Items)
	}
	if h.sender.titles[0] != "Newshound Weekly Report 02/22 - 03/01" {
		t.Fatalf("title = %q", h.sender.titles[0])
	}

	body := h.sender.bodies[0]
	if !strings.Contains(body, "## Active Authors") {
		t.Fatalf("weekly report missing author section:\n%s", body)
	}
	if !strings.Contains(body, "- @alice (3 items)") || !strings.Contains(body, "- @bob (1 items)") {
		t.Fatalf("weekly report missing author counts:\n%s", body)
	}
	if strings.Index(body, "@alice (3 items)") > strings.Index(body, "@bob (1 items)") {
		t.Fatalf("busiest author must lead:\n%s", body)
	}
}

func TestRunWeeklyReportIncludesUndatedItems(t *testing.T) {
	reporter, h := newReporter(t, nil)
	ctx := context.Background()

	item := &storage.Item{
		ExternalID:   "feed-entry",
		Source:       "rss",
		Title:        "item feed-entry",
		Body:         "body without a publish date",
		QualityScore: 0.5,
	}
	if _, err := h.store.UpsertItem(ctx, item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	result, err := reporter.RunWeeklyReport(ctx)
	if err != nil {
		t.Fatalf("RunWeeklyReport: %v", err)
	}
	if result.Items != 1 {
		t.Fatalf("items = %d, undated items must fall back to capture time", result.Items)
	}
}
