package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newshound/internal/services"
	"newshound/internal/storage"
)

const (
	analysisSystemPrompt = `You are a content analyst for a technology news
monitor. Analyze the supplied item and respond with a single JSON object,
no prose, containing exactly these fields:
- "summary": one-sentence summary
- "key_points": up to five core points (array of strings)
- "sentiment": "positive", "negative" or "neutral"
- "topics": topic tags (array of strings)
- "importance": integer 1-10
- "recommendation": one sentence on whether this deserves attention`

	batchSystemPrompt = `You are a trend analyst for a technology news
monitor. Review the supplied batch of items and respond with a single JSON
object, no prose, containing exactly these fields:
- "overall_summary": two or three sentences on the overall picture
- "hot_topics": array of {"topic", "description"} objects
- "key_insights": up to five insights (array of strings)
- "recommendation": one sentence on what to watch next`

	maxTranscriptPromptRunes = 3000
	maxBodyPromptRunes       = 2000
	maxBatchItems            = 30
)

// Analysis is the structured result stored in an item's analysis column.
type Analysis struct {
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	Sentiment      string   `json:"sentiment"`
	Topics         []string `json:"topics"`
	Importance     int      `json:"importance"`
	Recommendation string   `json:"recommendation"`
	AnalyzedAt     string   `json:"analyzed_at"`
}

// BatchSummary is the digest-level trend summary.
type BatchSummary struct {
	OverallSummary string     `json:"overall_summary"`
	HotTopics      []HotTopic `json:"hot_topics"`
	KeyInsights    []string   `json:"key_insights"`
	Recommendation string     `json:"recommendation"`
}

// HotTopic is one recurring theme surfaced by a batch summary.
type HotTopic struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// FocusFunc supplies the current analysis steering text, if any.
type FocusFunc func(ctx context.Context) string

// Analyzer produces structured analysis for stored items using the LLM
// client.
type Analyzer struct {
	client *Client
	focus  FocusFunc
	now    func() time.Time
}

// AnalyzerOption customizes analyzer construction.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerClock overrides the analyzer's clock (useful for tests).
func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer constructs an analyzer. focus may be nil.
func NewAnalyzer(client *Client, focus FocusFunc, opts ...AnalyzerOption) *Analyzer {
	analyzer := &Analyzer{
		client: client,
		focus:  focus,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(analyzer)
	}
	return analyzer
}

// Analyze runs single-item analysis and returns the canonical analysis JSON
// to store.
func (a *Analyzer) Analyze(ctx context.Context, item *storage.Item) (string, error) {
	if !a.client.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "enrich", "analyze", "llm api key not configured", nil)
	}

	prompt, err := a.buildItemPrompt(ctx, item)
	if err != nil {
		return "", err
	}
	content, err := a.client.CompleteJSON(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	var analysis Analysis
	if err := DecodeModelJSON(content, &analysis); err != nil {
		return "", fmt.Errorf("analyze item %d: parse payload: %w", item.ID, err)
	}
	analysis.Sentiment = normalizeSentiment(analysis.Sentiment)
	if analysis.Importance < 1 {
		analysis.Importance = 1
	}
	if analysis.Importance > 10 {
		analysis.Importance = 10
	}
	analysis.AnalyzedAt = a.now().UTC().Format(time.RFC3339)

	encoded, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("analyze item %d: encode analysis: %w", item.ID, err)
	}
	return string(encoded), nil
}

// SummarizeBatch produces a trend summary over the digest items.
func (a *Analyzer) SummarizeBatch(ctx context.Context, items []*storage.Item) (*BatchSummary, error) {
	if !a.client.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "summarize", "llm api key not configured", nil)
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrValidation, "enrich", "summarize", "no items", nil)
	}
	if len(items) > maxBatchItems {
		items = items[:maxBatchItems]
	}

	type batchEntry struct {
		Source  string `json:"source"`
		Title   string `json:"title,omitempty"`
		Content string `json:"content"`
	}
	entries := make([]batchEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, batchEntry{
			Source:  item.Source,
			Title:   item.Title,
			Content: truncateRunes(item.Body, 200),
		})
	}
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("summarize batch: encode items: %w", err)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Analyze these %d items collected in the current delivery window:\n\n%s\n", len(entries), encoded)
	if focus := a.focusText(ctx); focus != "" {
		fmt.Fprintf(&prompt, "\nAnalysis focus: %s\n", focus)
	}

	content, err := a.client.CompleteJSON(ctx, batchSystemPrompt, prompt.String())
	if err != nil {
		return nil, err
	}
	var summary BatchSummary
	if err := DecodeModelJSON(content, &summary); err != nil {
		return nil, fmt.Errorf("summarize batch: parse payload: %w", err)
	}
	return &summary, nil
}

func (a *Analyzer) buildItemPrompt(ctx context.Context, item *storage.Item) (string, error) {
	payload := map[string]any{
		"source":  item.Source,
		"content": truncateRunes(item.Body, maxBodyPromptRunes),
	}
	if item.Title != "" {
		payload["title"] = item.Title
	}
	if item.Author != "" {
		payload["author"] = item.Author
	}
	if item.MetricsJSON != "" {
		payload["metrics"] = json.RawMessage(item.MetricsJSON)
	}
	if item.Transcript != "" {
		payload["transcript"] = truncateRunes(item.Transcript, maxTranscriptPromptRunes)
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("analyze item %d: encode prompt: %w", item.ID, err)
	}

	var prompt strings.Builder
	prompt.WriteString("Analyze this item:\n\n")
	prompt.Write(encoded)
	prompt.WriteString("\n")
	if focus := a.focusText(ctx); focus != "" {
		fmt.Fprintf(&prompt, "\nAnalysis focus: %s\n", focus)
	}
	return prompt.String(), nil
}

func (a *Analyzer) focusText(ctx context.Context) string {
	if a.focus == nil {
		return ""
	}
	return strings.TrimSpace(a.focus(ctx))
}

func normalizeSentiment(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "positive":
		return "positive"
	case "negative":
		return "negative"
	default:
		return "neutral"
	}
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
