package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newshound/internal/enrich"
	"newshound/internal/logging"
	"newshound/internal/storage"
)

// WindowStore is the slice of the store the windower needs.
type WindowStore interface {
	LastDeliveredAt(ctx context.Context) (*time.Time, error)
	EnrichedUndeliveredBetween(ctx context.Context, start, end time.Time, limit int) ([]*storage.Item, error)
	MarkDelivered(ctx context.Context, ids []int64, deliveredAt time.Time) error
}

// BatchSummarizer produces an optional digest-level summary.
type BatchSummarizer interface {
	SummarizeBatch(ctx context.Context, items []*storage.Item) (*enrich.BatchSummary, error)
}

// DeliverySettings resolves the runtime delivery knobs.
type DeliverySettings interface {
	DeliveryEnabled(ctx context.Context) bool
	DeliveryTopN(ctx context.Context) int
}

// DeliveryResult summarizes one delivery batch.
type DeliveryResult struct {
	Delivered   int
	WindowStart time.Time
	WindowEnd   time.Time
	Skipped     bool
}

// Windower assembles and sends one digest per delivery window. The window
// starts at the previous delivery (or the configured lookback when nothing
// has ever been delivered) and ends now.
type Windower struct {
	store        WindowStore
	sender       Sender
	summarizer   BatchSummarizer
	settings     DeliverySettings
	logger       *slog.Logger
	loc          *time.Location
	lookback     time.Duration
	minSummarize int
	now          func() time.Time
}

// WindowerDeps carries the windower's collaborators.
type WindowerDeps struct {
	Store        WindowStore
	Sender       Sender
	Summarizer   BatchSummarizer
	Settings     DeliverySettings
	Logger       *slog.Logger
	Location     *time.Location
	Lookback     time.Duration
	MinSummarize int
}

// WindowerOption customizes windower construction.
type WindowerOption func(*Windower)

// WithWindowerClock overrides the windower's clock (useful for tests).
func WithWindowerClock(now func() time.Time) WindowerOption {
	return func(w *Windower) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindower constructs a delivery windower.
func NewWindower(deps WindowerDeps, opts ...WindowerOption) *Windower {
	windower := &Windower{
		store:        deps.Store,
		sender:       deps.Sender,
		summarizer:   deps.Summarizer,
		settings:     deps.Settings,
		logger:       logging.WithComponent(deps.Logger, "deliver"),
		loc:          deps.Location,
		lookback:     deps.Lookback,
		minSummarize: deps.MinSummarize,
		now:          time.Now,
	}
	if windower.loc == nil {
		windower.loc = time.Local
	}
	if windower.lookback <= 0 {
		windower.lookback = 12 * time.Hour
	}
	if windower.minSummarize <= 0 {
		windower.minSummarize = 3
	}
	for _, opt := range opts {
		opt(windower)
	}
	return windower
}

// RunDeliveryBatch sends at most one digest covering the current window.
// Items are only marked delivered after the webhook accepts the digest, so
// a failed send leaves the whole window eligible for the next attempt.
func (w *Windower) RunDeliveryBatch(ctx context.Context) (DeliveryResult, error) {
	end := w.now().UTC()
	result := DeliveryResult{WindowEnd: end}

	if !w.settings.DeliveryEnabled(ctx) {
		result.Skipped = true
		w.logger.Info("delivery disabled, skipping batch")
		return result, nil
	}

	start := end.Add(-w.lookback)
	last, err := w.store.LastDeliveredAt(ctx)
	if err != nil {
		return result, fmt.Errorf("resolve delivery window: %w", err)
	}
	if last != nil {
		start = last.UTC()
	}
	result.WindowStart = start

	items, err := w.store.EnrichedUndeliveredBetween(ctx, start, end, w.settings.DeliveryTopN(ctx))
	if err != nil {
		return result, fmt.Errorf("select digest items: %w", err)
	}
	if len(items) == 0 {
		w.logger.Info("nothing to deliver",
			logging.String("window_start", start.Format(time.RFC3339)),
			logging.String("window_end", end.Format(time.RFC3339)),
		)
		return result, nil
	}

	var summary *enrich.BatchSummary
	if w.summarizer != nil && len(items) >= w.minSummarize {
		summary, err = w.summarizer.SummarizeBatch(ctx, items)
		if err != nil {
			// The digest still goes out without the overview.
			summary = nil
			w.logger.Warn("batch summary failed", logging.Error(err))
		}
	}

	title := fmt.Sprintf("Newshound Digest %s", end.In(w.loc).Format("2006-01-02 15:04"))
	body := BuildDigest(items, summary)
	if err := w.sender.Send(ctx, title, body); err != nil {
		return result, fmt.Errorf("send digest: %w", err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if err := w.store.MarkDelivered(ctx, ids, end); err != nil {
		return result, fmt.Errorf("mark delivered: %w", err)
	}

	result.Delivered = len(items)
	w.logger.Info("digest delivered",
		logging.Int("items", result.Delivered),
		logging.String("window_start", start.Format(time.RFC3339)),
		logging.String("window_end", end.Format(time.RFC3339)),
	)
	return result, nil
}
