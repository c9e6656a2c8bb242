package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newshound/internal/services"
	"newshound/internal/sources"
)

const (
	defaultTranscriptBaseURL = "https://api.scrapecreators.com/v1/youtube"

	// Transcripts are billed per call, so only the first few videos that
	// clear an engagement floor get one.
	transcriptMaxVideos = 5
	transcriptMinViews  = 1000
	transcriptMinLikes  = 50
)

// TranscriptConfig captures the settings for the ScrapeCreators-compatible
// transcript API.
type TranscriptConfig struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// TranscriptClient fetches video transcripts. The Data API has no transcript
// surface, so this goes through a separate pay-per-call endpoint.
type TranscriptClient struct {
	cfg        TranscriptConfig
	httpClient *http.Client
}

// NewTranscriptClient constructs a transcript client from the supplied
// configuration.
func NewTranscriptClient(cfg TranscriptConfig) *TranscriptClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &TranscriptClient{
		cfg: TranscriptConfig{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultTranscriptBaseURL
	}
	return client
}

// Configured reports whether the client has an API key.
func (c *TranscriptClient) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// The endpoint serves the transcript either as one string or as a list of
// timed snippets, with text/content as older fallbacks.
type transcriptResponse struct {
	Transcript json.RawMessage `json:"transcript"`
	Text       string          `json:"text"`
	Content    string          `json:"content"`
}

// Transcript returns the plain-text transcript for a video, or an empty
// string when the video has none.
func (c *TranscriptClient) Transcript(ctx context.Context, videoID string) (string, error) {
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "youtube", "transcript", "transcript api key not configured", nil)
	}

	params := url.Values{}
	params.Set("video_id", videoID)
	endpoint := c.cfg.BaseURL + "/video/transcript?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var decoded transcriptResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	if text := flattenTranscript(decoded.Transcript); text != "" {
		return text, nil
	}
	if decoded.Text != "" {
		return strings.TrimSpace(decoded.Text), nil
	}
	return strings.TrimSpace(decoded.Content), nil
}

func flattenTranscript(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var snippets []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &snippets); err != nil {
		return ""
	}
	parts := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		if snippet.Text != "" {
			parts = append(parts, snippet.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// enrichTranscripts attaches transcripts to the leading popular videos.
// Transcript failures never fail the fetch; the candidate stays text-only.
func (a *Adapter) enrichTranscripts(ctx context.Context, candidates []sources.Candidate) {
	if !a.transcripts.Configured() {
		return
	}
	limit := len(candidates)
	if limit > transcriptMaxVideos {
		limit = transcriptMaxVideos
	}
	for i := 0; i < limit; i++ {
		candidate := &candidates[i]
		if candidate.Metrics[sources.MetricViews] <= transcriptMinViews &&
			candidate.Metrics[sources.MetricLikes] <= transcriptMinLikes {
			continue
		}
		text, err := a.transcripts.Transcript(ctx, candidate.ExternalID)
		if err != nil || text == "" {
			continue
		}
		candidate.Transcript = text
	}
}
