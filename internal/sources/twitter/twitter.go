package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newshound/internal/services"
	"newshound/internal/sources"
)

const (
	// Kind identifies this adapter in the registry and in stored items.
	Kind = "twitter"

	defaultBaseURL     = "https://api.twitterapi.io"
	defaultHTTPTimeout = 30 * time.Second
	pageSize           = 20
	trendCount         = 30

	// twitterapi.io bills in credits per call.
	costSearch = 75
	costAuthor = 75
	costTrends = 450

	// createdAt format, e.g. "Mon Feb 10 12:00:00 +0000 2026".
	createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"
)

// Config captures the runtime settings required to talk to twitterapi.io.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Adapter implements sources.Adapter and sources.TopicTrender over the
// twitterapi.io JSON API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the adapter.
type Option func(*Adapter)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// New constructs a twitter adapter from the supplied configuration.
func New(cfg Config, opts ...Option) *Adapter {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	adapter := &Adapter{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(adapter)
	}
	if adapter.cfg.BaseURL == "" {
		adapter.cfg.BaseURL = defaultBaseURL
	}
	return adapter
}

// Kind returns the source kind this adapter serves.
func (a *Adapter) Kind() string { return Kind }

// Cost reports the credit cost of one call of the operation.
func (a *Adapter) Cost(op sources.Operation) int {
	switch op {
	case sources.OpSearch:
		return costSearch
	case sources.OpAuthor:
		return costAuthor
	case sources.OpTrends:
		return costTrends
	default:
		return 0
	}
}

type tweetAuthor struct {
	Name           string `json:"name"`
	UserName       string `json:"userName"`
	IsBlueVerified bool   `json:"isBlueVerified"`
	Followers      int    `json:"followers"`
}

type tweetMedia struct {
	URL      string `json:"url"`
	MediaURL string `json:"media_url_https"`
}

type tweet struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	URL          string       `json:"url"`
	CreatedAt    string       `json:"createdAt"`
	Author       tweetAuthor  `json:"author"`
	Media        []tweetMedia `json:"media"`
	LikeCount    int64        `json:"likeCount"`
	RetweetCount int64        `json:"retweetCount"`
	ReplyCount   int64        `json:"replyCount"`
	QuoteCount   int64        `json:"quoteCount"`
	ViewCount    int64        `json:"viewCount"`
}

type searchResponse struct {
	Tweets     []tweet `json:"tweets"`
	NextCursor string  `json:"next_cursor"`
	Data       *struct {
		Tweets []tweet `json:"tweets"`
	} `json:"data"`
}

type trendsResponse struct {
	Trends []struct {
		Name string `json:"name"`
	} `json:"trends"`
}

// Search runs an advanced search for the query, following cursors until
// limit tweets are collected or the results run out.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = pageSize
	}

	var candidates []sources.Candidate
	cursor := ""
	pages := (limit + pageSize - 1) / pageSize

	for page := 0; page < pages; page++ {
		params := url.Values{}
		params.Set("query", query)
		params.Set("queryType", "Latest")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp searchResponse
		if err := a.get(ctx, "/twitter/tweet/advanced_search", params, &resp); err != nil {
			return nil, fmt.Errorf("twitter search %q: %w", query, err)
		}
		for i := range resp.Tweets {
			candidates = append(candidates, toCandidate(&resp.Tweets[i]))
		}
		cursor = resp.NextCursor
		if cursor == "" || len(resp.Tweets) == 0 {
			break
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// FetchForAuthor returns the latest tweets for a username (without the @).
func (a *Adapter) FetchForAuthor(ctx context.Context, author string, limit int) ([]sources.Candidate, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = pageSize
	}

	params := url.Values{}
	params.Set("userName", strings.TrimPrefix(author, "@"))

	var resp searchResponse
	if err := a.get(ctx, "/twitter/user/last_tweets", params, &resp); err != nil {
		return nil, fmt.Errorf("twitter author %q: %w", author, err)
	}
	// Some deployments nest the tweet list under "data".
	tweets := resp.Tweets
	if len(tweets) == 0 && resp.Data != nil {
		tweets = resp.Data.Tweets
	}
	if len(tweets) > limit {
		tweets = tweets[:limit]
	}

	candidates := make([]sources.Candidate, 0, len(tweets))
	for i := range tweets {
		candidates = append(candidates, toCandidate(&tweets[i]))
	}
	return candidates, nil
}

// TrendingTopics returns trending topic names for a WOEID, suitable for
// follow-up searches.
func (a *Adapter) TrendingTopics(ctx context.Context, woeid int) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("woeid", strconv.Itoa(woeid))
	params.Set("count", strconv.Itoa(trendCount))

	var resp trendsResponse
	if err := a.get(ctx, "/twitter/trends", params, &resp); err != nil {
		return nil, fmt.Errorf("twitter trends woeid=%d: %w", woeid, err)
	}

	topics := make([]string, 0, len(resp.Trends))
	for _, trend := range resp.Trends {
		if name := strings.TrimSpace(trend.Name); name != "" {
			topics = append(topics, name)
		}
	}
	return topics, nil
}

func (a *Adapter) ready() error {
	if a.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "twitter", "request", "api key not configured", nil)
	}
	return nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := a.cfg.BaseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-API-Key", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return services.Wrap(services.ErrTransient, "", "", fmt.Sprintf("http %d: %s", status, snippet), nil)
	}
	return fmt.Errorf("http %d: %s", status, snippet)
}

func toCandidate(t *tweet) sources.Candidate {
	candidate := sources.Candidate{
		ExternalID: t.ID,
		Source:     Kind,
		Body:       t.Text,
		URL:        t.URL,
		Author: sources.Author{
			Name:      t.Author.Name,
			ID:        t.Author.UserName,
			Verified:  t.Author.IsBlueVerified,
			Followers: t.Author.Followers,
		},
		Metrics: map[string]int64{
			sources.MetricLikes:    t.LikeCount,
			sources.MetricRetweets: t.RetweetCount,
			sources.MetricReplies:  t.ReplyCount,
			sources.MetricViews:    t.ViewCount,
		},
	}
	if candidate.URL == "" && t.ID != "" {
		candidate.URL = "https://x.com/i/status/" + t.ID
	}
	for _, media := range t.Media {
		if link := firstNonEmpty(media.URL, media.MediaURL); link != "" {
			candidate.Media = append(candidate.Media, link)
		}
	}
	if published, ok := parseCreatedAt(t.CreatedAt); ok {
		candidate.PublishedAt = &published
	}
	return candidate
}

func parseCreatedAt(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(createdAtLayout, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var (
	_ sources.Adapter      = (*Adapter)(nil)
	_ sources.TopicTrender = (*Adapter)(nil)
)
