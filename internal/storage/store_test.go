package storage_test

import (
	"context"
	"testing"
	"time"

	"newshound/internal/storage"
	"newshound/internal/testsupport"
)

func TestUpsertItemInsertThenUpdate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	published := time.Now().UTC().Add(-2 * time.Hour)
	item := &storage.Item{
		ExternalID:   "tw-1",
		Source:       "twitter",
		Author:       "alice",
		Title:        "first capture",
		Body:         "original body",
		QualityScore: 0.4,
		PublishedAt:  &published,
	}
	inserted, err := store.UpsertItem(ctx, item)
	if err != nil {
		t.Fatalf("UpsertItem insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected insert on first capture")
	}
	if item.ID == 0 {
		t.Fatal("expected ID populated after insert")
	}

	second := &storage.Item{
		ExternalID:   "tw-1",
		Source:       "twitter",
		Author:       "alice",
		Title:        "updated capture",
		Body:         "refreshed body",
		QualityScore: 0.7,
		PublishedAt:  &published,
	}
	inserted, err = store.UpsertItem(ctx, second)
	if err != nil {
		t.Fatalf("UpsertItem update: %v", err)
	}
	if inserted {
		t.Fatal("expected update on second capture of the same key")
	}
	if second.ID != item.ID {
		t.Fatalf("second capture ID = %d, want %d", second.ID, item.ID)
	}

	stored, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.Title != "updated capture" {
		t.Fatalf("Title = %q, want updated fields applied", stored.Title)
	}
	if stored.QualityScore != 0.7 {
		t.Fatalf("QualityScore = %v, want 0.7", stored.QualityScore)
	}
}

func TestUpsertItemPreservesEnrichmentState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "yt-1", "youtube")
	enrichedAt := time.Now().UTC()
	if err := store.SetEnrichment(ctx, item.ID, `{"summary":"x"}`, enrichedAt); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}

	refetch := &storage.Item{
		ExternalID: "yt-1",
		Source:     "youtube",
		Title:      "newer title",
	}
	if _, err := store.UpsertItem(ctx, refetch); err != nil {
		t.Fatalf("UpsertItem refetch: %v", err)
	}

	stored, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.EnrichedAt == nil {
		t.Fatal("refetch cleared enrichment timestamp")
	}
	if stored.AnalysisJSON == "" {
		t.Fatal("refetch cleared analysis payload")
	}
	if stored.Title != "newer title" {
		t.Fatalf("Title = %q, want fetch-derived field refreshed", stored.Title)
	}
}

func TestItemExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewItem(t, store, "tw-2", "twitter")

	exists, err := store.ItemExists(ctx, "tw-2", "twitter")
	if err != nil {
		t.Fatalf("ItemExists: %v", err)
	}
	if !exists {
		t.Fatal("expected stored item to exist")
	}
	exists, err = store.ItemExists(ctx, "tw-2", "youtube")
	if err != nil {
		t.Fatalf("ItemExists: %v", err)
	}
	if exists {
		t.Fatal("same external id on another source must not match")
	}
}

func TestUnenrichedPrioritizedOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubscription(t, store, "ai", "twitter", "ai")
	now := time.Now().UTC()

	older := now.Add(-3 * time.Hour)
	newer := now.Add(-1 * time.Hour)

	exploreNew := &storage.Item{ExternalID: "e1", Source: "twitter", PublishedAt: &newer}
	subOld := &storage.Item{ExternalID: "s1", Source: "twitter", SubscriptionID: &sub.ID, PublishedAt: &older}
	subNew := &storage.Item{ExternalID: "s2", Source: "twitter", SubscriptionID: &sub.ID, PublishedAt: &newer}
	subNoDate := &storage.Item{ExternalID: "s3", Source: "twitter", SubscriptionID: &sub.ID}

	for _, item := range []*storage.Item{exploreNew, subOld, subNew, subNoDate} {
		if _, err := store.UpsertItem(ctx, item); err != nil {
			t.Fatalf("UpsertItem %s: %v", item.ExternalID, err)
		}
	}

	items, err := store.UnenrichedPrioritized(ctx, 10)
	if err != nil {
		t.Fatalf("UnenrichedPrioritized: %v", err)
	}
	got := make([]string, 0, len(items))
	for _, item := range items {
		got = append(got, item.ExternalID)
	}
	want := []string{"s2", "s1", "s3", "e1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d = %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestSetEnrichmentRemovesFromQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "tw-3", "twitter")
	if err := store.SetEnrichment(ctx, item.ID, `{"tags":["ai"]}`, time.Now().UTC()); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}

	items, err := store.UnenrichedPrioritized(ctx, 10)
	if err != nil {
		t.Fatalf("UnenrichedPrioritized: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty enrichment queue, got %d items", len(items))
	}
}

func TestDeliveryWindowSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	inWindowLow := testsupport.NewItem(t, store, "d1", "twitter")
	inWindowHigh := testsupport.NewItem(t, store, "d2", "twitter")
	outOfWindow := testsupport.NewItem(t, store, "d3", "twitter")

	if err := store.SetEnrichment(ctx, inWindowLow.ID, "{}", now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}
	if err := store.SetEnrichment(ctx, inWindowHigh.ID, "{}", now.Add(-30*time.Minute)); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}
	if err := store.SetEnrichment(ctx, outOfWindow.ID, "{}", now.Add(-26*time.Hour)); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}

	// d2 outranks d1 on quality.
	high := &storage.Item{ExternalID: "d2", Source: "twitter", QualityScore: 0.9}
	if _, err := store.UpsertItem(ctx, high); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	items, err := store.EnrichedUndeliveredBetween(ctx, now.Add(-2*time.Hour), now, 10)
	if err != nil {
		t.Fatalf("EnrichedUndeliveredBetween: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 candidates in window, got %d", len(items))
	}
	if items[0].ExternalID != "d2" {
		t.Fatalf("first candidate = %s, want highest quality d2", items[0].ExternalID)
	}

	if err := store.MarkDelivered(ctx, []int64{items[0].ID, items[1].ID}, now); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	last, err := store.LastDeliveredAt(ctx)
	if err != nil {
		t.Fatalf("LastDeliveredAt: %v", err)
	}
	if last == nil {
		t.Fatal("expected delivery timestamp after MarkDelivered")
	}

	items, err = store.EnrichedUndeliveredBetween(ctx, now.Add(-2*time.Hour), now, 10)
	if err != nil {
		t.Fatalf("EnrichedUndeliveredBetween: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("delivered items must leave the window, got %d", len(items))
	}
}

func TestSubscriptionLifecycleAndDue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubscription(t, store, "golang", "twitter", "golang OR gopher")
	now := time.Now().UTC()

	due, err := store.DueSubscriptions(ctx, now)
	if err != nil {
		t.Fatalf("DueSubscriptions: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("never-fetched subscription should be due, got %d", len(due))
	}

	if err := store.MarkSubscriptionFetched(ctx, sub.ID, now); err != nil {
		t.Fatalf("MarkSubscriptionFetched: %v", err)
	}
	due, err = store.DueSubscriptions(ctx, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("DueSubscriptions: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("subscription inside interval should not be due, got %d", len(due))
	}
	due, err = store.DueSubscriptions(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("DueSubscriptions: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("elapsed interval should make subscription due, got %d", len(due))
	}

	if err := store.SetSubscriptionStatus(ctx, sub.ID, storage.SubscriptionPaused); err != nil {
		t.Fatalf("SetSubscriptionStatus: %v", err)
	}
	due, err = store.DueSubscriptions(ctx, now.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("DueSubscriptions: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("paused subscription must never be due, got %d", len(due))
	}
}

func TestNormalizeFetchIntervals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	short := testsupport.NewSubscription(t, store, "short", "twitter", "x")
	short.FetchInterval = 60
	if err := store.UpdateSubscription(ctx, short); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	long := testsupport.NewSubscription(t, store, "long", "twitter", "y")
	long.FetchInterval = 7200
	if err := store.UpdateSubscription(ctx, long); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	adjusted, err := store.NormalizeFetchIntervals(ctx, 3600)
	if err != nil {
		t.Fatalf("NormalizeFetchIntervals: %v", err)
	}
	if adjusted != 1 {
		t.Fatalf("adjusted = %d, want 1", adjusted)
	}

	reloaded, err := store.GetSubscription(ctx, short.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if reloaded.FetchInterval != 3600 {
		t.Fatalf("FetchInterval = %d, want raised to 3600", reloaded.FetchInterval)
	}
}

func TestBudgetLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, units := range []int{75, 75, 450} {
		entry := &storage.BudgetEntry{
			Source:    "twitter",
			Operation: "search",
			Units:     units,
			Day:       "2026-08-28",
		}
		if err := store.AppendBudgetEntry(ctx, entry); err != nil {
			t.Fatalf("AppendBudgetEntry: %v", err)
		}
	}
	otherDay := &storage.BudgetEntry{Source: "twitter", Operation: "search", Units: 75, Day: "2026-08-27"}
	if err := store.AppendBudgetEntry(ctx, otherDay); err != nil {
		t.Fatalf("AppendBudgetEntry: %v", err)
	}

	total, err := store.BudgetUnitsForDay(ctx, "twitter", "2026-08-28")
	if err != nil {
		t.Fatalf("BudgetUnitsForDay: %v", err)
	}
	if total != 600 {
		t.Fatalf("total = %d, want 600", total)
	}
	total, err = store.BudgetUnitsForDay(ctx, "twitter", "2026-08-26")
	if err != nil {
		t.Fatalf("BudgetUnitsForDay: %v", err)
	}
	if total != 0 {
		t.Fatalf("empty day total = %d, want 0", total)
	}
}

func TestFetchRunRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubscription(t, store, "news", "rss", "https://example.com/feed")
	started := time.Now().UTC().Add(-time.Minute)
	run := &storage.FetchRun{
		CycleID:        "cycle-1",
		SubscriptionID: &sub.ID,
		Source:         "rss",
		Status:         storage.FetchRunFailed,
		TotalFetched:   3,
		ErrorMessage:   "feed unreachable",
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
	}
	if err := store.RecordFetchRun(ctx, run); err != nil {
		t.Fatalf("RecordFetchRun: %v", err)
	}

	runs, err := store.RecentFetchRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentFetchRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != storage.FetchRunFailed || runs[0].ErrorMessage != "feed unreachable" {
		t.Fatalf("unexpected run: %+v", runs[0])
	}
	if runs[0].SubscriptionID == nil || *runs[0].SubscriptionID != sub.ID {
		t.Fatal("subscription id not round-tripped")
	}
}

func TestSettingsOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, found, err := store.Setting(ctx, "budget.daily_limit"); err != nil || found {
		t.Fatalf("Setting on empty store: found=%v err=%v", found, err)
	}

	if err := store.PutSetting(ctx, "budget.daily_limit", "1500", "temporary bump"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	value, found, err := store.Setting(ctx, "budget.daily_limit")
	if err != nil {
		t.Fatalf("Setting: %v", err)
	}
	if !found || value != "1500" {
		t.Fatalf("Setting = %q found=%v, want 1500", value, found)
	}

	if err := store.PutSetting(ctx, "budget.daily_limit", "2500", ""); err != nil {
		t.Fatalf("PutSetting replace: %v", err)
	}
	value, _, _ = store.Setting(ctx, "budget.daily_limit")
	if value != "2500" {
		t.Fatalf("Setting after replace = %q, want 2500", value)
	}

	if err := store.DeleteSetting(ctx, "budget.daily_limit"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, found, _ := store.Setting(ctx, "budget.daily_limit"); found {
		t.Fatal("setting should be gone after delete")
	}
}

func TestItemStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewSubscription(t, store, "s", "twitter", "t")
	a := testsupport.NewItem(t, store, "a", "twitter")
	testsupport.NewItem(t, store, "b", "twitter")
	if err := store.SetEnrichment(ctx, a.ID, "{}", time.Now().UTC()); err != nil {
		t.Fatalf("SetEnrichment: %v", err)
	}

	stats, err := store.ItemStats(ctx)
	if err != nil {
		t.Fatalf("ItemStats: %v", err)
	}
	if stats.TotalItems != 2 || stats.Unenriched != 1 || stats.Undelivered != 1 || stats.Subscriptions != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
