package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Schedule contains daemon timing configuration. Intervals are in seconds;
// DeliveryTimes and the report times are local wall-clock times ("HH:MM"),
// and WeeklyReportDay is an English weekday name.
type Schedule struct {
	Timezone               string   `toml:"timezone"`
	FetchCheckInterval     int      `toml:"fetch_check_interval"`
	ExploreKeywordInterval int      `toml:"explore_keyword_interval"`
	ExploreTrendInterval   int      `toml:"explore_trend_interval"`
	EnrichInterval         int      `toml:"enrich_interval"`
	DeliveryTimes          []string `toml:"delivery_times"`
	DailyReportTime        string   `toml:"daily_report_time"`
	WeeklyReportDay        string   `toml:"weekly_report_day"`
	WeeklyReportTime       string   `toml:"weekly_report_time"`
}

// Twitter contains configuration for the twitterapi.io-compatible API.
type Twitter struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	TrendWOEIDs    []int  `toml:"trend_woeids"`
}

// YouTube contains configuration for the YouTube Data API. The transcript
// fields point at a ScrapeCreators-compatible endpoint; transcripts stay off
// without a key.
type YouTube struct {
	APIKey            string   `toml:"api_key"`
	BaseURL           string   `toml:"base_url"`
	RequestTimeout    int      `toml:"request_timeout"`
	TrendRegions      []string `toml:"trend_regions"`
	TranscriptAPIKey  string   `toml:"transcript_api_key"`
	TranscriptBaseURL string   `toml:"transcript_base_url"`
}

// RSS contains configuration for RSS/Atom feed fetching.
type RSS struct {
	RequestTimeout int `toml:"request_timeout"`
}

// Filter contains content scoring thresholds.
type Filter struct {
	MinQualityScore float64 `toml:"min_quality_score"`
}

// Budget contains the daily API credit budget. A non-positive limit
// disables enforcement.
type Budget struct {
	DailyLimit int `toml:"daily_limit"`
}

// Fetch contains subscription and explore fetch configuration.
type Fetch struct {
	DefaultInterval int      `toml:"default_interval"`
	MinInterval     int      `toml:"min_interval"`
	SearchLimit     int      `toml:"search_limit"`
	ExploreEnabled  bool     `toml:"explore_enabled"`
	ExploreKeywords []string `toml:"explore_keywords"`
}

// LLM contains connection settings for the analysis model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BatchSize      int    `toml:"batch_size"`
	AnalysisFocus  string `toml:"analysis_focus"`
}

// Delivery contains digest delivery configuration.
type Delivery struct {
	Enabled           bool   `toml:"enabled"`
	WebhookURL        string `toml:"webhook_url"`
	WebhookSecret     string `toml:"webhook_secret"`
	RequestTimeout    int    `toml:"request_timeout"`
	TopN              int    `toml:"top_n"`
	LookbackHours     int    `toml:"lookback_hours"`
	MinSummarizeItems int    `toml:"min_summarize_items"`
}

// Config encapsulates all configuration values for newshound.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Schedule: daemon intervals and delivery times
//   - Twitter / YouTube / RSS: source API connection settings
//   - Filter: quality score threshold for stored content
//   - Budget: daily API credit limit
//   - Fetch: subscription intervals and explore keywords
//   - LLM: analysis model connection settings
//   - Delivery: webhook digest delivery
type Config struct {
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Schedule Schedule `toml:"schedule"`
	Twitter  Twitter  `toml:"twitter"`
	YouTube  YouTube  `toml:"youtube"`
	RSS      RSS      `toml:"rss"`
	Filter   Filter   `toml:"filter"`
	Budget   Budget   `toml:"budget"`
	Fetch    Fetch    `toml:"fetch"`
	LLM      LLM      `toml:"llm"`
	Delivery Delivery `toml:"delivery"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/newshound/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("newshound.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the path to the content database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "newshound.db")
}

// Location resolves the configured timezone. Normalization guarantees the
// value parses, so failures here fall back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains resolved LLM connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the analysis model connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
