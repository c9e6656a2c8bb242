package budget_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newshound/internal/budget"
	"newshound/internal/logging"
	"newshound/internal/storage"
	"newshound/internal/testsupport"
)

func fixedLimit(limit int) budget.LimitFunc {
	return func(context.Context) int { return limit }
}

func newController(t *testing.T, limit int, now func() time.Time) (*budget.Controller, *storage.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := slog.New(logging.NoopHandler{})
	controller := budget.NewController(store, logger, "twitter", fixedLimit(limit), time.UTC, budget.WithClock(now))
	return controller, store
}

func TestReserveWithinLimit(t *testing.T) {
	controller, _ := newController(t, 200, nil)
	ctx := context.Background()

	ok, err := controller.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !ok {
		t.Fatal("reserve within limit should succeed")
	}
}

func TestCommitAccumulatesAndReserveRefuses(t *testing.T) {
	controller, store := newController(t, 200, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := controller.Reserve(ctx, 75)
		if err != nil || !ok {
			t.Fatalf("Reserve #%d: ok=%v err=%v", i, ok, err)
		}
		if err := controller.Commit(ctx, "search", 75, "sub:1", "golang"); err != nil {
			t.Fatalf("Commit #%d: %v", i, err)
		}
	}

	ok, err := controller.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if ok {
		t.Fatal("reserve past the limit should refuse")
	}

	used, err := controller.UsedToday(ctx)
	if err != nil {
		t.Fatalf("UsedToday: %v", err)
	}
	if used != 150 {
		t.Fatalf("used = %d, want 150", used)
	}

	entries, err := store.RecentBudgetEntries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentBudgetEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
}

func TestFailedCallCostsNothing(t *testing.T) {
	controller, _ := newController(t, 100, nil)
	ctx := context.Background()

	ok, err := controller.Reserve(ctx, 75)
	if err != nil || !ok {
		t.Fatalf("Reserve: ok=%v err=%v", ok, err)
	}
	// The call failed upstream, so the reservation is returned.
	controller.Release(75)

	used, err := controller.UsedToday(ctx)
	if err != nil {
		t.Fatalf("UsedToday: %v", err)
	}
	if used != 0 {
		t.Fatalf("used = %d, want 0 without a commit", used)
	}
	ok, err = controller.Reserve(ctx, 75)
	if err != nil || !ok {
		t.Fatalf("reserve after release: ok=%v err=%v", ok, err)
	}
}

func TestReserveHoldsInFlightUnits(t *testing.T) {
	controller, _ := newController(t, 100, nil)
	ctx := context.Background()

	ok, err := controller.Reserve(ctx, 75)
	if err != nil || !ok {
		t.Fatalf("Reserve: ok=%v err=%v", ok, err)
	}

	// The first reservation is still in flight, so a second caller must
	// not pass the same headroom.
	ok, err = controller.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if ok {
		t.Fatal("overlapping reserve past the limit should refuse")
	}

	if err := controller.Commit(ctx, "search", 75, "", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	used, err := controller.UsedToday(ctx)
	if err != nil {
		t.Fatalf("UsedToday: %v", err)
	}
	if used != 75 {
		t.Fatalf("used = %d, want 75 after commit", used)
	}
}

func TestConcurrentReservesStayWithinLimit(t *testing.T) {
	controller, _ := newController(t, 100, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := controller.Reserve(ctx, 75)
			if err != nil {
				t.Errorf("Reserve: %v", err)
				return
			}
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 1 {
		t.Fatalf("granted = %d reservations of 75 against a limit of 100, want 1", granted.Load())
	}
}

func TestZeroLimitDisablesEnforcement(t *testing.T) {
	controller, _ := newController(t, 0, nil)
	ctx := context.Background()

	ok, err := controller.Reserve(ctx, 1_000_000)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !ok {
		t.Fatal("zero limit must never refuse")
	}
}

func TestDayRolloverResetsCounter(t *testing.T) {
	current := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	controller, _ := newController(t, 100, func() time.Time { return current })
	ctx := context.Background()

	if err := controller.Commit(ctx, "search", 75, "", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	ok, err := controller.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if ok {
		t.Fatal("same-day reserve should refuse at 75/100")
	}

	current = current.Add(2 * time.Hour)
	ok, err = controller.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !ok {
		t.Fatal("next-day reserve should start from a clean counter")
	}
	if controller.Day() != "2026-03-02" {
		t.Fatalf("day = %s, want 2026-03-02", controller.Day())
	}
}

func TestRestartRehydratesFromLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := slog.New(logging.NoopHandler{})
	ctx := context.Background()

	first := budget.NewController(store, logger, "twitter", fixedLimit(100), time.UTC)
	if err := first.Commit(ctx, "search", 75, "", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	second := budget.NewController(store, logger, "twitter", fixedLimit(100), time.UTC)
	used, err := second.UsedToday(ctx)
	if err != nil {
		t.Fatalf("UsedToday: %v", err)
	}
	if used != 75 {
		t.Fatalf("used after restart = %d, want 75", used)
	}
	ok, err := second.Reserve(ctx, 75)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if ok {
		t.Fatal("rehydrated controller should refuse past the limit")
	}
}
