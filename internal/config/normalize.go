package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	if err := c.normalizeSchedule(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeFetch()
	c.normalizeLLM()
	c.normalizeDelivery()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeSchedule() error {
	c.Schedule.Timezone = strings.TrimSpace(c.Schedule.Timezone)
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = defaultTimezone
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if c.Schedule.FetchCheckInterval <= 0 {
		c.Schedule.FetchCheckInterval = defaultFetchCheckInterval
	}
	if c.Schedule.ExploreKeywordInterval <= 0 {
		c.Schedule.ExploreKeywordInterval = defaultExploreKeywordInterval
	}
	if c.Schedule.ExploreTrendInterval <= 0 {
		c.Schedule.ExploreTrendInterval = defaultExploreTrendInterval
	}
	if c.Schedule.EnrichInterval <= 0 {
		c.Schedule.EnrichInterval = defaultEnrichInterval
	}
	times := make([]string, 0, len(c.Schedule.DeliveryTimes))
	for _, value := range c.Schedule.DeliveryTimes {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		times = append(times, trimmed)
	}
	c.Schedule.DeliveryTimes = times
	c.Schedule.DailyReportTime = strings.TrimSpace(c.Schedule.DailyReportTime)
	if c.Schedule.DailyReportTime == "" {
		c.Schedule.DailyReportTime = defaultDailyReportTime
	}
	c.Schedule.WeeklyReportDay = strings.TrimSpace(c.Schedule.WeeklyReportDay)
	if c.Schedule.WeeklyReportDay == "" {
		c.Schedule.WeeklyReportDay = defaultWeeklyReportDay
	}
	c.Schedule.WeeklyReportTime = strings.TrimSpace(c.Schedule.WeeklyReportTime)
	if c.Schedule.WeeklyReportTime == "" {
		c.Schedule.WeeklyReportTime = defaultWeeklyReportTime
	}
	return nil
}

func (c *Config) normalizeSources() {
	c.Twitter.APIKey = strings.TrimSpace(c.Twitter.APIKey)
	if c.Twitter.APIKey == "" {
		if value, ok := os.LookupEnv("TWITTER_API_KEY"); ok {
			c.Twitter.APIKey = strings.TrimSpace(value)
		}
	}
	c.Twitter.BaseURL = strings.TrimRight(strings.TrimSpace(c.Twitter.BaseURL), "/")
	if c.Twitter.BaseURL == "" {
		c.Twitter.BaseURL = defaultTwitterBaseURL
	}
	if c.Twitter.RequestTimeout <= 0 {
		c.Twitter.RequestTimeout = defaultRequestTimeout
	}

	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.BaseURL), "/")
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	if c.YouTube.RequestTimeout <= 0 {
		c.YouTube.RequestTimeout = defaultRequestTimeout
	}
	regions := make([]string, 0, len(c.YouTube.TrendRegions))
	seen := make(map[string]struct{}, len(c.YouTube.TrendRegions))
	for _, region := range c.YouTube.TrendRegions {
		normalized := strings.ToUpper(strings.TrimSpace(region))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		regions = append(regions, normalized)
	}
	c.YouTube.TrendRegions = regions

	c.YouTube.TranscriptAPIKey = strings.TrimSpace(c.YouTube.TranscriptAPIKey)
	if c.YouTube.TranscriptAPIKey == "" {
		if value, ok := os.LookupEnv("SCRAPECREATORS_API_KEY"); ok {
			c.YouTube.TranscriptAPIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.TranscriptBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.TranscriptBaseURL), "/")
	if c.YouTube.TranscriptBaseURL == "" {
		c.YouTube.TranscriptBaseURL = defaultTranscriptBaseURL
	}

	if c.RSS.RequestTimeout <= 0 {
		c.RSS.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.MinInterval <= 0 {
		c.Fetch.MinInterval = defaultMinFetchInterval
	}
	if c.Fetch.DefaultInterval <= 0 {
		c.Fetch.DefaultInterval = defaultFetchInterval
	}
	if c.Fetch.DefaultInterval < c.Fetch.MinInterval {
		c.Fetch.DefaultInterval = c.Fetch.MinInterval
	}
	if c.Fetch.SearchLimit <= 0 {
		c.Fetch.SearchLimit = defaultSearchLimit
	}
	keywords := make([]string, 0, len(c.Fetch.ExploreKeywords))
	for _, keyword := range c.Fetch.ExploreKeywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		keywords = append(keywords, trimmed)
	}
	c.Fetch.ExploreKeywords = keywords
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.BatchSize <= 0 {
		c.LLM.BatchSize = defaultLLMBatchSize
	}
	c.LLM.AnalysisFocus = strings.TrimSpace(c.LLM.AnalysisFocus)
}

func (c *Config) normalizeDelivery() {
	c.Delivery.WebhookURL = strings.TrimSpace(c.Delivery.WebhookURL)
	c.Delivery.WebhookSecret = strings.TrimSpace(c.Delivery.WebhookSecret)
	if c.Delivery.RequestTimeout <= 0 {
		c.Delivery.RequestTimeout = defaultRequestTimeout
	}
	if c.Delivery.TopN <= 0 {
		c.Delivery.TopN = defaultDeliveryTopN
	}
	if c.Delivery.LookbackHours <= 0 {
		c.Delivery.LookbackHours = defaultDeliveryLookbackHours
	}
	if c.Delivery.MinSummarizeItems <= 0 {
		c.Delivery.MinSummarizeItems = defaultMinSummarizeItems
	}
}
