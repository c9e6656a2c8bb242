package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"newshound/internal/logging"
	"newshound/internal/sources"
	"newshound/internal/storage"
)

// ExistenceChecker is the slice of the store the engine needs for durable
// dedup.
type ExistenceChecker interface {
	ItemExists(ctx context.Context, externalID, source string) (bool, error)
}

// Scored pairs a surviving candidate with its scores.
type Scored struct {
	Candidate sources.Candidate
	Quality   float64
	Relevance float64
}

// DropCounts reports why candidates were removed from a batch.
type DropCounts struct {
	Duplicates int
	LowQuality int
}

// Engine deduplicates and scores fetched candidates. The fingerprint cache
// spans one fetch cycle; callers reset it between cycles so reposts in a
// later cycle are judged against the durable store alone. The cache is
// mutex-guarded, so fetch and explore cycles may share one engine.
type Engine struct {
	store  ExistenceChecker
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the engine's clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs a filter engine backed by the given store.
func NewEngine(store ExistenceChecker, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		store:  store,
		logger: logging.WithComponent(logger, "filter"),
		now:    time.Now,
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// ResetSeen clears the cycle-scoped fingerprint cache.
func (e *Engine) ResetSeen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = make(map[string]struct{})
}

// markSeen records the fingerprint and reports whether it was new.
func (e *Engine) markSeen(fingerprint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.seen[fingerprint]; dup {
		return false
	}
	e.seen[fingerprint] = struct{}{}
	return true
}

// FilterBatch deduplicates the batch, drops already-stored and near-duplicate
// candidates, scores the survivors, and removes those below minQuality.
// Survivors come back ordered best quality first. Relevance is computed
// against the subscription target; explore candidates (nil sub) carry a
// neutral relevance.
func (e *Engine) FilterBatch(ctx context.Context, candidates []sources.Candidate, sub *storage.Subscription, minQuality float64) ([]Scored, DropCounts, error) {
	var drops DropCounts
	now := e.now()
	batchKeys := make(map[string]struct{}, len(candidates))
	survivors := make([]Scored, 0, len(candidates))

	for i := range candidates {
		candidate := &candidates[i]
		key := candidate.Source + "\x00" + candidate.ExternalID

		if _, dup := batchKeys[key]; dup {
			drops.Duplicates++
			continue
		}
		batchKeys[key] = struct{}{}

		exists, err := e.store.ItemExists(ctx, candidate.ExternalID, candidate.Source)
		if err != nil {
			return nil, drops, fmt.Errorf("dedup lookup: %w", err)
		}
		if exists {
			drops.Duplicates++
			continue
		}

		if !e.markSeen(Fingerprint(candidate)) {
			drops.Duplicates++
			continue
		}

		quality := QualityScore(candidate, now)
		if quality < minQuality {
			drops.LowQuality++
			e.logger.Debug("candidate below quality threshold",
				logging.String(logging.FieldSource, candidate.Source),
				logging.String("external_id", candidate.ExternalID),
				logging.Float64("quality", quality),
			)
			continue
		}

		relevance := 0.5
		if sub != nil {
			relevance = RelevanceScore(candidate, sub.Target)
		}

		survivors = append(survivors, Scored{
			Candidate: *candidate,
			Quality:   quality,
			Relevance: relevance,
		})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Quality > survivors[j].Quality
	})
	return survivors, drops, nil
}
