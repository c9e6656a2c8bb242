package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newshound/internal/logging"
	"newshound/internal/services"
	"newshound/internal/storage"
)

// ItemAnalyzer produces the analysis JSON for one item.
type ItemAnalyzer interface {
	Analyze(ctx context.Context, item *storage.Item) (string, error)
}

// QueueStore is the slice of the store the queue needs.
type QueueStore interface {
	UnenrichedPrioritized(ctx context.Context, limit int) ([]*storage.Item, error)
	SetEnrichment(ctx context.Context, id int64, analysisJSON string, enrichedAt time.Time) error
}

// BatchResult summarizes one enrichment batch.
type BatchResult struct {
	Processed int
	Failed    int
}

// Queue drains unenriched items through the analyzer. Items that fail stay
// unenriched and come back on a later batch.
type Queue struct {
	store    QueueStore
	analyzer ItemAnalyzer
	logger   *slog.Logger
	now      func() time.Time
}

// QueueOption customizes queue construction.
type QueueOption func(*Queue)

// WithQueueClock overrides the queue's clock (useful for tests).
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue constructs an enrichment queue.
func NewQueue(store QueueStore, analyzer ItemAnalyzer, logger *slog.Logger, opts ...QueueOption) *Queue {
	queue := &Queue{
		store:    store,
		analyzer: analyzer,
		logger:   logging.WithComponent(logger, "enrich"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(queue)
	}
	return queue
}

// ProcessBatch analyzes up to limit unenriched items in priority order. A
// configuration error aborts the batch; other failures are isolated per
// item.
func (q *Queue) ProcessBatch(ctx context.Context, limit int) (BatchResult, error) {
	var result BatchResult
	if limit <= 0 {
		limit = 20
	}

	items, err := q.store.UnenrichedPrioritized(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("load enrichment queue: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		analysisJSON, err := q.analyzer.Analyze(ctx, item)
		if err != nil {
			if errors.Is(err, services.ErrConfiguration) {
				q.logger.Warn("enrichment not configured, aborting batch", logging.Error(err))
				return result, err
			}
			result.Failed++
			q.logger.Error("item analysis failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldSource, item.Source),
				logging.Error(err),
			)
			continue
		}

		if err := q.store.SetEnrichment(ctx, item.ID, analysisJSON, q.now()); err != nil {
			result.Failed++
			q.logger.Error("storing enrichment failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
			)
			continue
		}
		result.Processed++
	}

	q.logger.Info("enrichment batch finished",
		logging.Int("processed", result.Processed),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}
