package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newshound/internal/budget"
	"newshound/internal/config"
	"newshound/internal/deliver"
	"newshound/internal/enrich"
	"newshound/internal/fetch"
	"newshound/internal/filter"
	"newshound/internal/logging"
	"newshound/internal/settings"
	"newshound/internal/sources"
	"newshound/internal/sources/rss"
	"newshound/internal/sources/twitter"
	"newshound/internal/sources/youtube"
	"newshound/internal/storage"
)

// runtime holds the assembled pipeline for one CLI invocation.
type runtime struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *storage.Store
	resolver     *settings.Resolver
	registry     *sources.Registry
	orchestrator *fetch.Orchestrator
	queue        *enrich.Queue
	sender       *deliver.WebhookSender
	windower     *deliver.Windower
	reporter     *deliver.Reporter
}

func (c *commandContext) buildRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	resolver := settings.NewResolver(cfg, store, logger)
	loc := cfg.Location()

	registry := sources.NewRegistry(
		twitter.New(twitter.Config{
			APIKey:         cfg.Twitter.APIKey,
			BaseURL:        cfg.Twitter.BaseURL,
			TimeoutSeconds: cfg.Twitter.RequestTimeout,
		}),
		youtube.New(youtube.Config{
			APIKey:         cfg.YouTube.APIKey,
			BaseURL:        cfg.YouTube.BaseURL,
			TimeoutSeconds: cfg.YouTube.RequestTimeout,
		}, youtube.WithTranscriptClient(youtube.NewTranscriptClient(youtube.TranscriptConfig{
			APIKey:         cfg.YouTube.TranscriptAPIKey,
			BaseURL:        cfg.YouTube.TranscriptBaseURL,
			TimeoutSeconds: cfg.YouTube.RequestTimeout,
		}))),
		rss.New(rss.Config{TimeoutSeconds: cfg.RSS.RequestTimeout}),
	)

	budgets := make(map[string]*budget.Controller)
	for _, kind := range []string{twitter.Kind, youtube.Kind} {
		budgets[kind] = budget.NewController(store, logger, kind, resolver.DailyBudgetLimit, loc)
	}

	orchestrator := fetch.New(fetch.Deps{
		Store:       store,
		Registry:    registry,
		Engine:      filter.NewEngine(store, logger),
		Settings:    resolver,
		Budgets:     budgets,
		Logger:      logger,
		SearchLimit: cfg.Fetch.SearchLimit,
	})

	client := enrich.NewClient(cfg.GetLLM())
	analyzer := enrich.NewAnalyzer(client, resolver.AnalysisFocus)
	queue := enrich.NewQueue(store, analyzer, logger)

	sender := deliver.NewWebhookSender(cfg.Delivery)
	windower := deliver.NewWindower(deliver.WindowerDeps{
		Store:        store,
		Sender:       sender,
		Summarizer:   analyzer,
		Settings:     resolver,
		Logger:       logger,
		Location:     loc,
		Lookback:     time.Duration(cfg.Delivery.LookbackHours) * time.Hour,
		MinSummarize: cfg.Delivery.MinSummarizeItems,
	})

	reporter := deliver.NewReporter(deliver.ReporterDeps{
		Store:      store,
		Sender:     sender,
		Summarizer: analyzer,
		Settings:   resolver,
		Logger:     logger,
		Location:   loc,
	})

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		resolver:     resolver,
		registry:     registry,
		orchestrator: orchestrator,
		queue:        queue,
		sender:       sender,
		windower:     windower,
		reporter:     reporter,
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

func (c *commandContext) withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := c.buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(context.Background(), rt)
}
