package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"newshound/internal/budget"
	"newshound/internal/filter"
	"newshound/internal/logging"
	"newshound/internal/settings"
	"newshound/internal/sources"
	"newshound/internal/storage"
)

// Deps bundles the collaborators an orchestrator needs.
type Deps struct {
	Store    *storage.Store
	Registry *sources.Registry
	Engine   *filter.Engine
	Settings *settings.Resolver
	// Budgets maps source kind to its spend controller. Sources without an
	// entry are treated as free.
	Budgets     map[string]*budget.Controller
	Logger      *slog.Logger
	SearchLimit int
}

// CycleResult summarizes one fetch or explore cycle.
type CycleResult struct {
	CycleID      string
	Processed    int
	Skipped      int
	Failed       int
	NewItems     int
	UpdatedItems int
	Filtered     int
}

// Orchestrator drives fetch cycles. Subscriptions are processed strictly
// sequentially; a failing subscription never aborts the cycle.
type Orchestrator struct {
	store       *storage.Store
	registry    *sources.Registry
	engine      *filter.Engine
	settings    *settings.Resolver
	budgets     map[string]*budget.Controller
	logger      *slog.Logger
	searchLimit int
	now         func() time.Time
	newCycleID  func() string
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithClock overrides the orchestrator's clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs a fetch orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	searchLimit := deps.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 20
	}
	orchestrator := &Orchestrator{
		store:       deps.Store,
		registry:    deps.Registry,
		engine:      deps.Engine,
		settings:    deps.Settings,
		budgets:     deps.Budgets,
		logger:      logging.WithComponent(deps.Logger, "fetch"),
		searchLimit: searchLimit,
		now:         time.Now,
		newCycleID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(orchestrator)
	}
	return orchestrator
}

// RunFetchCycle fetches every due subscription once.
func (o *Orchestrator) RunFetchCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{CycleID: o.newCycleID()}
	defer o.engine.ResetSeen()

	if !o.settings.SubscriptionsEnabled(ctx) {
		o.logger.Info("subscription fetching disabled, skipping cycle",
			logging.String(logging.FieldCycleID, result.CycleID))
		return result, nil
	}

	due, err := o.store.DueSubscriptions(ctx, o.now())
	if err != nil {
		return result, fmt.Errorf("due subscriptions: %w", err)
	}
	if len(due) == 0 {
		o.logger.Debug("no subscriptions due",
			logging.String(logging.FieldCycleID, result.CycleID))
		return result, nil
	}

	o.logger.Info("fetch cycle starting",
		logging.String(logging.FieldCycleID, result.CycleID),
		logging.Int("due", len(due)),
	)
	minQuality := o.settings.MinQualityScore(ctx)

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		o.processSubscription(ctx, sub, minQuality, &result)
	}

	o.logger.Info("fetch cycle finished",
		logging.String(logging.FieldCycleID, result.CycleID),
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("new_items", result.NewItems),
		logging.Int("updated_items", result.UpdatedItems),
		logging.Int("filtered", result.Filtered),
	)
	return result, nil
}

func (o *Orchestrator) processSubscription(ctx context.Context, sub *storage.Subscription, minQuality float64, result *CycleResult) {
	logger := o.logger.With(
		logging.String(logging.FieldCycleID, result.CycleID),
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.String(logging.FieldSource, sub.Source),
	)

	adapter, ok := o.registry.Get(sub.Source)
	if !ok {
		result.Failed++
		o.recordRun(ctx, result.CycleID, sub, storage.FetchRunFailed, counts{}, fmt.Sprintf("no adapter for source %q", sub.Source))
		logger.Error("no adapter registered for source")
		return
	}

	op := sources.OpSearch
	if sub.Type == storage.SubscriptionAuthor {
		op = sources.OpAuthor
	}
	if !o.reserve(ctx, sub.Source, adapter.Cost(op)) {
		result.Skipped++
		logger.Warn("skipping subscription, daily budget exhausted")
		return
	}

	started := o.now()
	var (
		candidates []sources.Candidate
		err        error
	)
	switch sub.Type {
	case storage.SubscriptionAuthor:
		candidates, err = adapter.FetchForAuthor(ctx, sub.Target, o.searchLimit)
	default:
		candidates, err = adapter.Search(ctx, sub.Target, o.searchLimit)
	}
	if err != nil {
		o.release(sub.Source, adapter.Cost(op))
		result.Failed++
		o.recordRun(ctx, result.CycleID, sub, storage.FetchRunFailed, counts{started: started}, err.Error())
		logger.Error("subscription fetch failed", logging.Error(err))
		return
	}
	o.commit(ctx, sub.Source, op, adapter.Cost(op), "subscription:"+strconv.FormatInt(sub.ID, 10), sub.Target)

	stored, err := o.filterAndStore(ctx, candidates, sub, minQuality)
	stored.started = started
	if err != nil {
		result.Failed++
		o.recordRun(ctx, result.CycleID, sub, storage.FetchRunFailed, stored, err.Error())
		logger.Error("storing fetched items failed", logging.Error(err))
		return
	}

	result.Processed++
	result.NewItems += stored.inserted
	result.UpdatedItems += stored.updated
	result.Filtered += stored.filtered
	o.recordRun(ctx, result.CycleID, sub, storage.FetchRunSuccess, stored, "")
	if err := o.store.MarkSubscriptionFetched(ctx, sub.ID, o.now()); err != nil {
		logger.Error("marking subscription fetched failed", logging.Error(err))
	}
	logger.Info("subscription fetched",
		logging.Int("fetched", stored.fetched),
		logging.Int("new_items", stored.inserted),
		logging.Int("updated_items", stored.updated),
		logging.Int("filtered", stored.filtered),
	)
}

// RunExploreCycle runs keyword exploration followed by trend exploration.
func (o *Orchestrator) RunExploreCycle(ctx context.Context) (CycleResult, error) {
	result, err := o.RunExploreKeywords(ctx)
	if err != nil {
		return result, err
	}
	trends, err := o.RunExploreTrends(ctx)
	result.Processed += trends.Processed
	result.Skipped += trends.Skipped
	result.Failed += trends.Failed
	result.NewItems += trends.NewItems
	result.UpdatedItems += trends.UpdatedItems
	result.Filtered += trends.Filtered
	return result, err
}

// RunExploreKeywords searches the configured explore keywords on every
// registered adapter that supports search.
func (o *Orchestrator) RunExploreKeywords(ctx context.Context) (CycleResult, error) {
	result := CycleResult{CycleID: o.newCycleID()}
	defer o.engine.ResetSeen()

	if !o.settings.ExploreEnabled(ctx) {
		return result, nil
	}
	keywords := o.settings.ExploreKeywords(ctx)
	if len(keywords) == 0 {
		return result, nil
	}
	minQuality := o.settings.MinQualityScore(ctx)

	for _, kind := range o.registry.Kinds() {
		adapter, _ := o.registry.Get(kind)
		for _, keyword := range keywords {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			o.exploreSearch(ctx, adapter, keyword, minQuality, &result)
		}
	}
	o.logExplore("explore keywords finished", result)
	return result, nil
}

// RunExploreTrends pulls twitter trending topics (searched as queries) and
// youtube trending videos (stored directly).
func (o *Orchestrator) RunExploreTrends(ctx context.Context) (CycleResult, error) {
	result := CycleResult{CycleID: o.newCycleID()}
	defer o.engine.ResetSeen()

	if !o.settings.ExploreEnabled(ctx) {
		return result, nil
	}
	minQuality := o.settings.MinQualityScore(ctx)

	for _, kind := range o.registry.Kinds() {
		adapter, _ := o.registry.Get(kind)

		if trender, ok := adapter.(sources.TopicTrender); ok {
			for _, woeid := range o.settings.TwitterWOEIDs(ctx) {
				if err := ctx.Err(); err != nil {
					return result, err
				}
				o.exploreTopics(ctx, adapter, trender, woeid, minQuality, &result)
			}
		}
		if trender, ok := adapter.(sources.ContentTrender); ok {
			for _, region := range o.settings.YouTubeRegions(ctx) {
				if err := ctx.Err(); err != nil {
					return result, err
				}
				o.exploreContent(ctx, adapter, trender, region, minQuality, &result)
			}
		}
	}
	o.logExplore("explore trends finished", result)
	return result, nil
}

func (o *Orchestrator) exploreSearch(ctx context.Context, adapter sources.Adapter, keyword string, minQuality float64, result *CycleResult) {
	cost := adapter.Cost(sources.OpSearch)
	if !o.reserve(ctx, adapter.Kind(), cost) {
		result.Skipped++
		return
	}
	started := o.now()
	candidates, err := adapter.Search(ctx, keyword, o.searchLimit)
	if err != nil {
		o.release(adapter.Kind(), cost)
		result.Failed++
		o.recordRun(ctx, result.CycleID, nil, storage.FetchRunFailed, counts{started: started, source: adapter.Kind()}, err.Error())
		o.logger.Error("explore search failed",
			logging.String(logging.FieldCycleID, result.CycleID),
			logging.String(logging.FieldSource, adapter.Kind()),
			logging.String("keyword", keyword),
			logging.Error(err),
		)
		return
	}
	o.commit(ctx, adapter.Kind(), sources.OpSearch, cost, "explore:keyword", keyword)
	if len(candidates) == 0 {
		return
	}
	o.storeExplore(ctx, candidates, adapter.Kind(), started, minQuality, result)
}

func (o *Orchestrator) exploreTopics(ctx context.Context, adapter sources.Adapter, trender sources.TopicTrender, woeid int, minQuality float64, result *CycleResult) {
	cost := adapter.Cost(sources.OpTrends)
	if !o.reserve(ctx, adapter.Kind(), cost) {
		result.Skipped++
		return
	}
	topics, err := trender.TrendingTopics(ctx, woeid)
	if err != nil {
		o.release(adapter.Kind(), cost)
		result.Failed++
		o.logger.Error("trending topics failed",
			logging.String(logging.FieldCycleID, result.CycleID),
			logging.String(logging.FieldSource, adapter.Kind()),
			logging.Int("woeid", woeid),
			logging.Error(err),
		)
		return
	}
	o.commit(ctx, adapter.Kind(), sources.OpTrends, cost, "explore:trends", "woeid:"+strconv.Itoa(woeid))

	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return
		}
		o.exploreSearch(ctx, adapter, topic, minQuality, result)
	}
}

func (o *Orchestrator) exploreContent(ctx context.Context, adapter sources.Adapter, trender sources.ContentTrender, region string, minQuality float64, result *CycleResult) {
	cost := adapter.Cost(sources.OpTrends)
	if !o.reserve(ctx, adapter.Kind(), cost) {
		result.Skipped++
		return
	}
	started := o.now()
	candidates, err := trender.TrendingContent(ctx, region, o.searchLimit)
	if err != nil {
		o.release(adapter.Kind(), cost)
		result.Failed++
		o.logger.Error("trending content failed",
			logging.String(logging.FieldCycleID, result.CycleID),
			logging.String(logging.FieldSource, adapter.Kind()),
			logging.String("region", region),
			logging.Error(err),
		)
		return
	}
	o.commit(ctx, adapter.Kind(), sources.OpTrends, cost, "explore:trends", "region:"+region)
	o.storeExplore(ctx, candidates, adapter.Kind(), started, minQuality, result)
}

func (o *Orchestrator) storeExplore(ctx context.Context, candidates []sources.Candidate, kind string, started time.Time, minQuality float64, result *CycleResult) {
	stored, err := o.filterAndStore(ctx, candidates, nil, minQuality)
	stored.started = started
	stored.source = kind
	if err != nil {
		result.Failed++
		o.recordRun(ctx, result.CycleID, nil, storage.FetchRunFailed, stored, err.Error())
		return
	}
	result.Processed++
	result.NewItems += stored.inserted
	result.UpdatedItems += stored.updated
	result.Filtered += stored.filtered
	o.recordRun(ctx, result.CycleID, nil, storage.FetchRunSuccess, stored, "")
}

type counts struct {
	source   string
	fetched  int
	inserted int
	updated  int
	filtered int
	started  time.Time
}

func (o *Orchestrator) filterAndStore(ctx context.Context, candidates []sources.Candidate, sub *storage.Subscription, minQuality float64) (counts, error) {
	stored := counts{fetched: len(candidates)}

	survivors, drops, err := o.engine.FilterBatch(ctx, candidates, sub, minQuality)
	if err != nil {
		return stored, err
	}
	stored.filtered = drops.Duplicates + drops.LowQuality

	for i := range survivors {
		item, err := toItem(&survivors[i], sub)
		if err != nil {
			return stored, err
		}
		inserted, err := o.store.UpsertItem(ctx, item)
		if err != nil {
			return stored, err
		}
		if inserted {
			stored.inserted++
		} else {
			stored.updated++
		}
	}
	return stored, nil
}

func toItem(scored *filter.Scored, sub *storage.Subscription) (*storage.Item, error) {
	candidate := &scored.Candidate
	item := &storage.Item{
		ExternalID:     candidate.ExternalID,
		Source:         candidate.Source,
		Author:         candidate.Author.Name,
		AuthorID:       candidate.Author.ID,
		Title:          candidate.Title,
		Body:           candidate.Body,
		Transcript:     candidate.Transcript,
		URL:            candidate.URL,
		RelevanceScore: scored.Relevance,
		QualityScore:   scored.Quality,
		PublishedAt:    candidate.PublishedAt,
	}
	if sub != nil {
		id := sub.ID
		item.SubscriptionID = &id
	}
	if len(candidate.Metrics) > 0 {
		encoded, err := json.Marshal(candidate.Metrics)
		if err != nil {
			return nil, fmt.Errorf("encode metrics: %w", err)
		}
		item.MetricsJSON = string(encoded)
	}
	if len(candidate.Media) > 0 {
		encoded, err := json.Marshal(candidate.Media)
		if err != nil {
			return nil, fmt.Errorf("encode media: %w", err)
		}
		item.MediaJSON = string(encoded)
	}
	return item, nil
}

func (o *Orchestrator) reserve(ctx context.Context, kind string, cost int) bool {
	if cost <= 0 {
		return true
	}
	controller, ok := o.budgets[kind]
	if !ok || controller == nil {
		return true
	}
	allowed, err := controller.Reserve(ctx, cost)
	if err != nil {
		o.logger.Error("budget reserve failed", logging.String(logging.FieldSource, kind), logging.Error(err))
		return false
	}
	return allowed
}

func (o *Orchestrator) release(kind string, cost int) {
	if cost <= 0 {
		return
	}
	if controller, ok := o.budgets[kind]; ok && controller != nil {
		controller.Release(cost)
	}
}

func (o *Orchestrator) commit(ctx context.Context, kind string, op sources.Operation, cost int, callContext, detail string) {
	if cost <= 0 {
		return
	}
	controller, ok := o.budgets[kind]
	if !ok || controller == nil {
		return
	}
	if err := controller.Commit(ctx, string(op), cost, callContext, detail); err != nil {
		o.logger.Error("budget commit failed", logging.String(logging.FieldSource, kind), logging.Error(err))
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, cycleID string, sub *storage.Subscription, status storage.FetchRunStatus, stored counts, errMessage string) {
	run := &storage.FetchRun{
		CycleID:       cycleID,
		Source:        stored.source,
		Status:        status,
		TotalFetched:  stored.fetched,
		NewItems:      stored.inserted,
		UpdatedItems:  stored.updated,
		FilteredItems: stored.filtered,
		ErrorMessage:  errMessage,
		StartedAt:     stored.started,
		FinishedAt:    o.now(),
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	if sub != nil {
		id := sub.ID
		run.SubscriptionID = &id
		run.Source = sub.Source
	}
	if err := o.store.RecordFetchRun(ctx, run); err != nil {
		o.logger.Error("recording fetch run failed", logging.Error(err))
	}
}

func (o *Orchestrator) logExplore(msg string, result CycleResult) {
	o.logger.Info(msg,
		logging.String(logging.FieldCycleID, result.CycleID),
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("new_items", result.NewItems),
		logging.Int("filtered", result.Filtered),
	)
}
