package youtube

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
	Kind = "youtube"

	defaultBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultHTTPTimeout = 30 * time.Second
	maxResultsCap      = 50

	// Data API quota units. search.list dominates; videos.list is cheap,
	// which is why trending goes through the mostPopular chart.
	costSearch = 100
	costAuthor = 100
	costTrends = 1
)

// Config captures the runtime settings for the YouTube Data API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Adapter implements sources.Adapter and sources.ContentTrender over the
// YouTube Data API v3.
type Adapter struct {
	cfg         Config
	httpClient  *http.Client
	transcripts *TranscriptClient
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

// WithTranscriptClient attaches a transcript fetcher. Popular videos then
// carry their transcript into filtering and analysis.
func WithTranscriptClient(client *TranscriptClient) Option {
	return func(a *Adapter) {
		a.transcripts = client
	}
}

// New constructs a youtube adapter from the supplied configuration.
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

// Cost reports the quota units of one call of the operation.
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

type snippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   map[string]struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// The Data API serializes statistics counters as strings.
type statistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID   string `json:"videoId"`
			ChannelID string `json:"channelId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID         string     `json:"id"`
		Snippet    snippet    `json:"snippet"`
		Statistics statistics `json:"statistics"`
	} `json:"items"`
}

// Search finds videos matching the query and joins in per-video statistics.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("order", "relevance")

	var resp searchResponse
	if err := a.get(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	candidates, err := a.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	a.enrichTranscripts(ctx, candidates)
	return candidates, nil
}

// FetchForAuthor returns the latest uploads for a channel. Handles and
// channel names are resolved to channel IDs with a search call first.
func (a *Adapter) FetchForAuthor(ctx context.Context, author string, limit int) ([]sources.Candidate, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	channelID := strings.TrimSpace(author)
	if !strings.HasPrefix(channelID, "UC") {
		resolved, err := a.resolveChannelID(ctx, channelID)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return nil, services.Wrap(services.ErrNotFound, "youtube", "author", fmt.Sprintf("channel %q not found", author), nil)
		}
		channelID = resolved
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("order", "date")

	var resp searchResponse
	if err := a.get(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube author %q: %w", author, err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	candidates, err := a.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	a.enrichTranscripts(ctx, candidates)
	return candidates, nil
}

// TrendingContent returns the mostPopular chart for a region.
func (a *Adapter) TrendingContent(ctx context.Context, region string, limit int) ([]sources.Candidate, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("chart", "mostPopular")
	params.Set("regionCode", region)
	params.Set("maxResults", strconv.Itoa(limit))

	var resp videosResponse
	if err := a.get(ctx, "/videos", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube trending %s: %w", region, err)
	}
	candidates := videosToCandidates(resp)
	a.enrichTranscripts(ctx, candidates)
	return candidates, nil
}

func (a *Adapter) videoDetails(ctx context.Context, ids []string) ([]sources.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxResultsCap {
		ids = ids[:maxResultsCap]
	}

	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if err := a.get(ctx, "/videos", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube videos: %w", err)
	}
	return videosToCandidates(resp), nil
}

func (a *Adapter) resolveChannelID(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "channel")
	params.Set("maxResults", "1")

	var resp searchResponse
	if err := a.get(ctx, "/search", params, &resp); err != nil {
		return "", fmt.Errorf("youtube resolve channel %q: %w", query, err)
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID.ChannelID, nil
}

func (a *Adapter) ready() error {
	if a.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "youtube", "request", "api key not configured", nil)
	}
	return nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", a.cfg.APIKey)
	endpoint := a.cfg.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

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

func videosToCandidates(resp videosResponse) []sources.Candidate {
	candidates := make([]sources.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID == "" {
			continue
		}
		candidate := sources.Candidate{
			ExternalID: item.ID,
			Source:     Kind,
			Title:      item.Snippet.Title,
			Body:       item.Snippet.Description,
			URL:        "https://www.youtube.com/watch?v=" + item.ID,
			Author: sources.Author{
				Name: item.Snippet.ChannelTitle,
				ID:   item.Snippet.ChannelID,
			},
			Metrics: map[string]int64{
				sources.MetricViews:    parseCount(item.Statistics.ViewCount),
				sources.MetricLikes:    parseCount(item.Statistics.LikeCount),
				sources.MetricComments: parseCount(item.Statistics.CommentCount),
			},
		}
		if thumb, ok := item.Snippet.Thumbnails["default"]; ok && thumb.URL != "" {
			candidate.Media = append(candidate.Media, thumb.URL)
		}
		if published, ok := parsePublishedAt(item.Snippet.PublishedAt); ok {
			candidate.PublishedAt = &published
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func parseCount(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parsePublishedAt(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxResultsCap {
		return maxResultsCap
	}
	return limit
}

var (
	_ sources.Adapter        = (*Adapter)(nil)
	_ sources.ContentTrender = (*Adapter)(nil)
)
