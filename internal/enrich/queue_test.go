package enrich_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newshound/internal/config"
	"newshound/internal/enrich"
	"newshound/internal/logging"
	"newshound/internal/services"
	"newshound/internal/storage"
	"newshound/internal/testsupport"
)

type fakeItemAnalyzer struct {
	failFor map[string]error
	calls   []int64
}

func (f *fakeItemAnalyzer) Analyze(_ context.Context, item *storage.Item) (string, error) {
	f.calls = append(f.calls, item.ID)
	if err, ok := f.failFor[item.ExternalID]; ok {
		return "", err
	}
	return `{"summary":"analyzed ` + item.ExternalID + `"}`, nil
}

func TestProcessBatchEnrichesInPriorityOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	analyzer := &fakeItemAnalyzer{}
	queue := enrich.NewQueue(store, analyzer, slog.New(logging.NoopHandler{}))
	ctx := context.Background()

	testsupport.NewItem(t, store, "a", "twitter")
	testsupport.NewItem(t, store, "b", "rss")

	result, err := queue.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if result.Processed != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	remaining, err := store.UnenrichedPrioritized(ctx, 10)
	if err != nil {
		t.Fatalf("UnenrichedPrioritized: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining = %d, want fully drained", len(remaining))
	}
}

func TestProcessBatchLeavesFailuresForRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	analyzer := &fakeItemAnalyzer{failFor: map[string]error{"bad": errors.New("model hiccup")}}
	queue := enrich.NewQueue(store, analyzer, slog.New(logging.NoopHandler{}))
	ctx := context.Background()

	testsupport.NewItem(t, store, "good", "twitter")
	testsupport.NewItem(t, store, "bad", "twitter")

	result, err := queue.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	remaining, err := store.UnenrichedPrioritized(ctx, 10)
	if err != nil {
		t.Fatalf("UnenrichedPrioritized: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ExternalID != "bad" {
		t.Fatalf("remaining = %+v, failed item must stay queued", remaining)
	}
}

func TestProcessBatchAbortsWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	analyzer := &fakeItemAnalyzer{failFor: map[string]error{
		"a": services.Wrap(services.ErrConfiguration, "enrich", "analyze", "no key", nil),
	}}
	queue := enrich.NewQueue(store, analyzer, slog.New(logging.NoopHandler{}))
	ctx := context.Background()

	testsupport.NewItem(t, store, "a", "twitter")
	testsupport.NewItem(t, store, "b", "twitter")

	_, err := queue.ProcessBatch(ctx, 10)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
	if len(analyzer.calls) != 1 {
		t.Fatalf("calls = %d, batch should abort on the first configuration error", len(analyzer.calls))
	}
}

func TestAnalyzerProducesCanonicalAnalysis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"summary\":\"big release\",\"key_points\":[\"ships today\"],\"sentiment\":\"POSITIVE\",\"topics\":[\"go\"],\"importance\":42,\"recommendation\":\"watch\"}"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := enrich.NewClient(config.LLMConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	analyzer := enrich.NewAnalyzer(client, nil, enrich.WithAnalyzerClock(func() time.Time { return fixed }))

	item := &storage.Item{ID: 1, ExternalID: "x", Source: "twitter", Body: "Go 1.26 is out"}
	analysisJSON, err := analyzer.Analyze(context.Background(), item)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var analysis enrich.Analysis
	if err := enrich.DecodeModelJSON(analysisJSON, &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.Summary != "big release" || analysis.Sentiment != "positive" {
		t.Fatalf("analysis = %+v", analysis)
	}
	if analysis.Importance != 10 {
		t.Fatalf("importance = %d, want clamped to 10", analysis.Importance)
	}
	if analysis.AnalyzedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("analyzed_at = %s", analysis.AnalyzedAt)
	}
}

func TestAnalyzerRequiresConfiguration(t *testing.T) {
	client := enrich.NewClient(config.LLMConfig{BaseURL: "http://unused"})
	analyzer := enrich.NewAnalyzer(client, nil)

	_, err := analyzer.Analyze(context.Background(), &storage.Item{ID: 1, Body: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestSummarizeBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"overall_summary\":\"quiet day\",\"key_insights\":[\"nothing broke\"]}"}}]}`))
	}))
	t.Cleanup(server.Close)

	client := enrich.NewClient(config.LLMConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
	analyzer := enrich.NewAnalyzer(client, func(context.Context) string { return "infra" })

	summary, err := analyzer.SummarizeBatch(context.Background(), []*storage.Item{
		{ID: 1, Source: "rss", Title: "t", Body: "b"},
	})
	if err != nil {
		t.Fatalf("SummarizeBatch: %v", err)
	}
	if summary.OverallSummary != "quiet day" || len(summary.KeyInsights) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}
