package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"newshound/internal/config"
	"newshound/internal/logging"
	"newshound/internal/services"
	"newshound/internal/storage"
)

// Well-known override keys. Anything else stored in the settings table is
// preserved but never consulted by the resolver.
const (
	KeyMinQualityScore  = "filter.min_quality_score"
	KeyDailyBudgetLimit = "budget.daily_limit"
	KeyExploreEnabled   = "fetch.explore_enabled"
	KeyExploreKeywords  = "fetch.explore_keywords"
	KeyTwitterWOEIDs    = "twitter.trend_woeids"
	KeyYouTubeRegions   = "youtube.trend_regions"
	KeyDeliveryEnabled  = "delivery.enabled"
	KeyDeliveryTopN     = "delivery.top_n"
	KeyAnalysisFocus    = "llm.analysis_focus"

	// Runtime-only kill switch for subscription fetching; there is no file
	// config equivalent, the default is on.
	KeySubscriptionsEnabled = "fetch.subscriptions_enabled"
)

var knownKeys = []string{
	KeyMinQualityScore,
	KeyDailyBudgetLimit,
	KeyExploreEnabled,
	KeyExploreKeywords,
	KeyTwitterWOEIDs,
	KeyYouTubeRegions,
	KeyDeliveryEnabled,
	KeyDeliveryTopN,
	KeyAnalysisFocus,
	KeySubscriptionsEnabled,
}

// KnownKeys lists the override keys the resolver understands, sorted.
func KnownKeys() []string {
	keys := make([]string, len(knownKeys))
	copy(keys, knownKeys)
	sort.Strings(keys)
	return keys
}

// SettingReader is the slice of the store the resolver needs.
type SettingReader interface {
	Setting(ctx context.Context, key string) (string, bool, error)
}

// Resolver answers configuration questions, preferring database overrides
// over file configuration. Malformed overrides are logged and ignored so a
// bad stored value never takes the daemon down.
type Resolver struct {
	cfg    *config.Config
	store  SettingReader
	logger *slog.Logger
}

// NewResolver builds a resolver over the given config and store.
func NewResolver(cfg *config.Config, store SettingReader, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		store:  store,
		logger: logging.WithComponent(logger, "settings"),
	}
}

// MinQualityScore returns the quality threshold below which fetched
// candidates are discarded.
func (r *Resolver) MinQualityScore(ctx context.Context) float64 {
	var value float64
	if r.override(ctx, KeyMinQualityScore, &value) && value >= 0 && value <= 1 {
		return value
	}
	return r.cfg.Filter.MinQualityScore
}

// DailyBudgetLimit returns the per-day API unit ceiling. Non-positive
// disables enforcement.
func (r *Resolver) DailyBudgetLimit(ctx context.Context) int {
	var value int
	if r.override(ctx, KeyDailyBudgetLimit, &value) {
		return value
	}
	return r.cfg.Budget.DailyLimit
}

// SubscriptionsEnabled reports whether subscription fetch cycles should run.
func (r *Resolver) SubscriptionsEnabled(ctx context.Context) bool {
	var value bool
	if r.override(ctx, KeySubscriptionsEnabled, &value) {
		return value
	}
	return true
}

// ExploreEnabled reports whether explore cycles should run.
func (r *Resolver) ExploreEnabled(ctx context.Context) bool {
	var value bool
	if r.override(ctx, KeyExploreEnabled, &value) {
		return value
	}
	return r.cfg.Fetch.ExploreEnabled
}

// ExploreKeywords returns the search terms used by keyword explore cycles.
func (r *Resolver) ExploreKeywords(ctx context.Context) []string {
	var value []string
	if r.override(ctx, KeyExploreKeywords, &value) {
		return cleanStrings(value)
	}
	return cleanStrings(r.cfg.Fetch.ExploreKeywords)
}

// TwitterWOEIDs returns the locations polled for trending topics.
func (r *Resolver) TwitterWOEIDs(ctx context.Context) []int {
	var value []int
	if r.override(ctx, KeyTwitterWOEIDs, &value) && len(value) > 0 {
		return value
	}
	return r.cfg.Twitter.TrendWOEIDs
}

// YouTubeRegions returns the region codes polled for trending videos.
func (r *Resolver) YouTubeRegions(ctx context.Context) []string {
	var value []string
	if r.override(ctx, KeyYouTubeRegions, &value) {
		if cleaned := cleanStrings(value); len(cleaned) > 0 {
			return cleaned
		}
	}
	return r.cfg.YouTube.TrendRegions
}

// DeliveryEnabled reports whether scheduled digests should go out.
func (r *Resolver) DeliveryEnabled(ctx context.Context) bool {
	var value bool
	if r.override(ctx, KeyDeliveryEnabled, &value) {
		return value
	}
	return r.cfg.Delivery.Enabled
}

// DeliveryTopN returns how many items a digest carries.
func (r *Resolver) DeliveryTopN(ctx context.Context) int {
	var value int
	if r.override(ctx, KeyDeliveryTopN, &value) && value > 0 {
		return value
	}
	return r.cfg.Delivery.TopN
}

// AnalysisFocus returns the steering prompt fragment for content analysis.
func (r *Resolver) AnalysisFocus(ctx context.Context) string {
	var value string
	if r.override(ctx, KeyAnalysisFocus, &value) {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(r.cfg.LLM.AnalysisFocus)
}

func (r *Resolver) override(ctx context.Context, key string, out any) bool {
	raw, ok, err := r.store.Setting(ctx, key)
	if err != nil {
		r.logger.Warn("setting lookup failed", logging.String("key", key), logging.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		r.logger.Warn("ignoring malformed setting override",
			logging.String("key", key),
			logging.Error(err),
		)
		return false
	}
	return true
}

func cleanStrings(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// EncodeOverride validates and JSON-encodes a raw string for a known key so
// CLI writes store well-typed values.
func EncodeOverride(key, raw string) (string, error) {
	switch key {
	case KeyMinQualityScore:
		var value float64
		if err := json.Unmarshal([]byte(raw), &value); err != nil || value < 0 || value > 1 {
			return "", services.Wrap(services.ErrValidation, "settings", "encode override",
				fmt.Sprintf("%s must be a number between 0 and 1", key), nil)
		}
		return raw, nil
	case KeyDailyBudgetLimit, KeyDeliveryTopN:
		var value int
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return "", services.Wrap(services.ErrValidation, "settings", "encode override",
				fmt.Sprintf("%s must be an integer", key), nil)
		}
		return raw, nil
	case KeyExploreEnabled, KeyDeliveryEnabled, KeySubscriptionsEnabled:
		var value bool
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return "", services.Wrap(services.ErrValidation, "settings", "encode override",
				fmt.Sprintf("%s must be true or false", key), nil)
		}
		return raw, nil
	case KeyExploreKeywords, KeyYouTubeRegions:
		encoded, err := encodeStringList(raw)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "settings", "encode override",
				fmt.Sprintf("%s must be a comma-separated list or JSON array of strings", key), err)
		}
		return encoded, nil
	case KeyTwitterWOEIDs:
		var value []int
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return "", services.Wrap(services.ErrValidation, "settings", "encode override",
				fmt.Sprintf("%s must be a JSON array of integers", key), err)
		}
		return raw, nil
	case KeyAnalysisFocus:
		encoded, err := json.Marshal(strings.TrimSpace(raw))
		if err != nil {
			return "", fmt.Errorf("encode override: %w", err)
		}
		return string(encoded), nil
	default:
		return "", services.Wrap(services.ErrValidation, "settings", "encode override",
			fmt.Sprintf("unknown setting %q", key), nil)
	}
}

func encodeStringList(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var value []string
		if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
			return "", err
		}
		encoded, err := json.Marshal(cleanStrings(value))
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
	parts := cleanStrings(strings.Split(trimmed, ","))
	encoded, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

var _ SettingReader = (*storage.Store)(nil)
