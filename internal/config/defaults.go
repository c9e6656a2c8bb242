package config

const (
	defaultDataDir                = "~/.local/share/newshound"
	defaultLogDir                 = "~/.local/share/newshound/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultTimezone               = "Local"
	defaultFetchCheckInterval     = 1800
	defaultExploreKeywordInterval = 21600
	defaultExploreTrendInterval   = 86400
	defaultEnrichInterval         = 600
	defaultTwitterBaseURL         = "https://api.twitterapi.io"
	defaultYouTubeBaseURL         = "https://www.googleapis.com/youtube/v3"
	defaultTranscriptBaseURL      = "https://api.scrapecreators.com/v1/youtube"
	defaultRequestTimeout         = 30
	defaultMinQualityScore        = 0.5
	defaultDailyBudgetLimit       = 3000
	defaultFetchInterval          = 14400
	defaultMinFetchInterval       = 3600
	defaultSearchLimit            = 20
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/newshound/newshound"
	defaultLLMTitle               = "Newshound Analyzer"
	defaultLLMTimeoutSeconds      = 60
	defaultLLMBatchSize           = 20
	defaultDailyReportTime        = "09:30"
	defaultWeeklyReportDay        = "Monday"
	defaultWeeklyReportTime       = "10:00"
	defaultDeliveryTopN           = 10
	defaultDeliveryLookbackHours  = 12
	defaultMinSummarizeItems      = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Schedule: Schedule{
			Timezone:               defaultTimezone,
			FetchCheckInterval:     defaultFetchCheckInterval,
			ExploreKeywordInterval: defaultExploreKeywordInterval,
			ExploreTrendInterval:   defaultExploreTrendInterval,
			EnrichInterval:         defaultEnrichInterval,
			DeliveryTimes:          []string{"09:00", "18:00"},
			DailyReportTime:        defaultDailyReportTime,
			WeeklyReportDay:        defaultWeeklyReportDay,
			WeeklyReportTime:       defaultWeeklyReportTime,
		},
		Twitter: Twitter{
			BaseURL:        defaultTwitterBaseURL,
			RequestTimeout: defaultRequestTimeout,
			TrendWOEIDs:    []int{1},
		},
		YouTube: YouTube{
			BaseURL:           defaultYouTubeBaseURL,
			RequestTimeout:    defaultRequestTimeout,
			TrendRegions:      []string{"US"},
			TranscriptBaseURL: defaultTranscriptBaseURL,
		},
		RSS: RSS{
			RequestTimeout: defaultRequestTimeout,
		},
		Filter: Filter{
			MinQualityScore: defaultMinQualityScore,
		},
		Budget: Budget{
			DailyLimit: defaultDailyBudgetLimit,
		},
		Fetch: Fetch{
			DefaultInterval: defaultFetchInterval,
			MinInterval:     defaultMinFetchInterval,
			SearchLimit:     defaultSearchLimit,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			BatchSize:      defaultLLMBatchSize,
		},
		// Delivery ships disabled; it turns on once a webhook URL is set.
		Delivery: Delivery{
			RequestTimeout:    defaultRequestTimeout,
			TopN:              defaultDeliveryTopN,
			LookbackHours:     defaultDeliveryLookbackHours,
			MinSummarizeItems: defaultMinSummarizeItems,
		},
	}
}
