package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"newshound/internal/config"
	"newshound/internal/deliver"
	"newshound/internal/enrich"
	"newshound/internal/fetch"
	"newshound/internal/logging"
	"newshound/internal/storage"
)

// Fetcher runs fetch and explore cycles.
type Fetcher interface {
	RunFetchCycle(ctx context.Context) (fetch.CycleResult, error)
	RunExploreKeywords(ctx context.Context) (fetch.CycleResult, error)
	RunExploreTrends(ctx context.Context) (fetch.CycleResult, error)
}

// Enricher drains the analysis queue in batches.
type Enricher interface {
	ProcessBatch(ctx context.Context, limit int) (enrich.BatchResult, error)
}

// Deliverer sends the digest for the current window.
type Deliverer interface {
	RunDeliveryBatch(ctx context.Context) (deliver.DeliveryResult, error)
}

// Reporter sends the periodic recap reports.
type Reporter interface {
	RunDailyReport(ctx context.Context) (deliver.ReportResult, error)
	RunWeeklyReport(ctx context.Context) (deliver.ReportResult, error)
}

// Stages bundles the pipeline workers the daemon schedules.
type Stages struct {
	Fetcher   Fetcher
	Enricher  Enricher
	Deliverer Deliverer
	Reporter  Reporter
}

// Daemon coordinates the stage loops and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Store
	stages Stages

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithClock overrides the daemon's clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *storage.Store, logger *slog.Logger, stages Stages, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	if stages.Fetcher == nil || stages.Enricher == nil || stages.Deliverer == nil || stages.Reporter == nil {
		return nil, errors.New("daemon requires fetcher, enricher, deliverer, and reporter stages")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "newshound.lock")
	daemon := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		stages:   stages,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(daemon)
	}
	return daemon, nil
}

// Start acquires the instance lock, normalizes subscription intervals, and
// launches the stage loops. The first fetch cycle runs immediately.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another newshound instance is already running")
	}

	bumped, err := d.store.NormalizeFetchIntervals(ctx, d.cfg.Fetch.MinInterval)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("normalize fetch intervals: %w", err)
	}
	if bumped > 0 {
		d.logger.Info("raised sub-minimum fetch intervals",
			logging.Int64("subscriptions", bumped),
			logging.Int("min_interval", d.cfg.Fetch.MinInterval),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.startLoop(runCtx, "fetch", d.interval(d.cfg.Schedule.FetchCheckInterval, 30*time.Minute), true, func(ctx context.Context) error {
		result, err := d.stages.Fetcher.RunFetchCycle(ctx)
		if err != nil {
			return err
		}
		d.logCycle("fetch cycle finished", result)
		return nil
	})
	d.startLoop(runCtx, "explore-keywords", d.interval(d.cfg.Schedule.ExploreKeywordInterval, 6*time.Hour), false, func(ctx context.Context) error {
		result, err := d.stages.Fetcher.RunExploreKeywords(ctx)
		if err != nil {
			return err
		}
		d.logCycle("explore keyword cycle finished", result)
		return nil
	})
	d.startLoop(runCtx, "explore-trends", d.interval(d.cfg.Schedule.ExploreTrendInterval, 24*time.Hour), false, func(ctx context.Context) error {
		result, err := d.stages.Fetcher.RunExploreTrends(ctx)
		if err != nil {
			return err
		}
		d.logCycle("explore trend cycle finished", result)
		return nil
	})
	d.startLoop(runCtx, "enrich", d.interval(d.cfg.Schedule.EnrichInterval, 10*time.Minute), false, func(ctx context.Context) error {
		result, err := d.stages.Enricher.ProcessBatch(ctx, d.cfg.LLM.BatchSize)
		if err != nil {
			return err
		}
		if result.Processed > 0 || result.Failed > 0 {
			d.logger.Info("enrichment batch finished",
				logging.Int("processed", result.Processed),
				logging.Int("failed", result.Failed),
			)
		}
		return nil
	})
	d.startDeliveryLoop(runCtx)
	d.startReportLoops(runCtx)

	d.logger.Info("newshound daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the stage loops, waits for them, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("newshound daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the stage loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the path of the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

func (d *Daemon) interval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func (d *Daemon) logCycle(msg string, result fetch.CycleResult) {
	if result.Processed == 0 && result.NewItems == 0 && result.Failed == 0 && result.Skipped == 0 {
		return
	}
	d.logger.Info(msg,
		logging.String("cycle_id", result.CycleID),
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("new_items", result.NewItems),
		logging.Int("updated_items", result.UpdatedItems),
		logging.Int("filtered", result.Filtered),
	)
}
