package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"newshound/internal/deliver"
	"newshound/internal/enrich"
	"newshound/internal/fetch"
	"newshound/internal/logging"
	"newshound/internal/testsupport"
)

type stubStages struct {
	fetchRuns    atomic.Int64
	keywordRuns  atomic.Int64
	trendRuns    atomic.Int64
	enrichRuns   atomic.Int64
	deliveryRuns atomic.Int64
	reportRuns   atomic.Int64
	fetched      chan struct{}
}

func newStubStages() *stubStages {
	return &stubStages{fetched: make(chan struct{}, 16)}
}

func (s *stubStages) RunFetchCycle(context.Context) (fetch.CycleResult, error) {
	s.fetchRuns.Add(1)
	select {
	case s.fetched <- struct{}{}:
	default:
	}
	return fetch.CycleResult{}, nil
}

func (s *stubStages) RunExploreKeywords(context.Context) (fetch.CycleResult, error) {
	s.keywordRuns.Add(1)
	return fetch.CycleResult{}, nil
}

func (s *stubStages) RunExploreTrends(context.Context) (fetch.CycleResult, error) {
	s.trendRuns.Add(1)
	return fetch.CycleResult{}, nil
}

func (s *stubStages) ProcessBatch(context.Context, int) (enrich.BatchResult, error) {
	s.enrichRuns.Add(1)
	return enrich.BatchResult{}, nil
}

func (s *stubStages) RunDeliveryBatch(context.Context) (deliver.DeliveryResult, error) {
	s.deliveryRuns.Add(1)
	return deliver.DeliveryResult{}, nil
}

func (s *stubStages) RunDailyReport(context.Context) (deliver.ReportResult, error) {
	s.reportRuns.Add(1)
	return deliver.ReportResult{}, nil
}

func (s *stubStages) RunWeeklyReport(context.Context) (deliver.ReportResult, error) {
	s.reportRuns.Add(1)
	return deliver.ReportResult{}, nil
}

func newTestDaemon(t *testing.T) (*Daemon, *stubStages) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stages := newStubStages()
	daemon, err := New(cfg, store, logging.NewNop(), Stages{
		Fetcher:   stages,
		Enricher:  stages,
		Deliverer: stages,
		Reporter:  stages,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(daemon.Stop)
	return daemon, stages
}

func TestStartRunsImmediateFetchCycle(t *testing.T) {
	daemon, stages := newTestDaemon(t)

	if err := daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !daemon.Running() {
		t.Fatal("daemon must report running after Start")
	}

	select {
	case <-stages.fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("startup fetch cycle never ran")
	}

	daemon.Stop()
	if daemon.Running() {
		t.Fatal("daemon must report stopped after Stop")
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	first, _ := newTestDaemon(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := first.Start(context.Background()); err == nil {
		t.Fatal("second Start on a running daemon must fail")
	}
}

func TestStartNormalizesFetchIntervals(t *testing.T) {
	daemon, _ := newTestDaemon(t)
	ctx := context.Background()

	sub := testsupport.NewSubscription(t, daemon.store, "fast", "twitter", "golang")
	sub.FetchInterval = 10
	if err := daemon.store.UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("shrink interval: %v", err)
	}

	if err := daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reloaded, err := daemon.store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if reloaded.FetchInterval < daemon.cfg.Fetch.MinInterval {
		t.Fatalf("interval = %d, want at least %d", reloaded.FetchInterval, daemon.cfg.Fetch.MinInterval)
	}
}

func TestNextDelivery(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, loc)

	next, err := nextDelivery(now, []string{"09:00", "18:00"})
	if err != nil {
		t.Fatalf("nextDelivery: %v", err)
	}
	want := time.Date(2026, 3, 1, 18, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	late := time.Date(2026, 3, 1, 23, 0, 0, 0, loc)
	next, err = nextDelivery(late, []string{"09:00", "18:00"})
	if err != nil {
		t.Fatalf("nextDelivery: %v", err)
	}
	want = time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want next-day slot %v", next, want)
	}

	if _, err := nextDelivery(now, []string{"25:00"}); err == nil {
		t.Fatal("out-of-range hour must error")
	}
	if _, err := nextDelivery(now, nil); err == nil {
		t.Fatal("empty schedule must error")
	}
}

func TestNextWeekly(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	// Wednesday before the slot rolls forward to next Monday.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, loc)
	next := nextWeekly(now, time.Monday, 10, 0)
	want := time.Date(2026, 3, 9, 10, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	// Same weekday earlier than the slot stays on today.
	monday := time.Date(2026, 3, 9, 8, 0, 0, 0, loc)
	next = nextWeekly(monday, time.Monday, 10, 0)
	want = time.Date(2026, 3, 9, 10, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want same-day slot %v", next, want)
	}

	// Same weekday past the slot waits a full week.
	lateMonday := time.Date(2026, 3, 9, 11, 0, 0, 0, loc)
	next = nextWeekly(lateMonday, time.Monday, 10, 0)
	want = time.Date(2026, 3, 16, 10, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want next-week slot %v", next, want)
	}
}
