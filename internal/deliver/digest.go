package deliver

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"newshound/internal/enrich"
	"newshound/internal/storage"
)

const bodyExcerptRunes = 300

var titleCaser = cases.Title(language.English)

// BuildDigest renders the window's items into one markdown document.
// Items arrive best quality first and are grouped by source in order of
// first appearance; an optional batch summary leads the digest.
func BuildDigest(items []*storage.Item, summary *enrich.BatchSummary) string {
	var b strings.Builder

	if summary != nil {
		writeSummary(&b, summary)
	}

	var order []string
	grouped := make(map[string][]*storage.Item)
	for _, item := range items {
		if _, seen := grouped[item.Source]; !seen {
			order = append(order, item.Source)
		}
		grouped[item.Source] = append(grouped[item.Source], item)
	}

	for _, source := range order {
		fmt.Fprintf(&b, "## %s\n\n", titleCaser.String(source))
		for _, item := range grouped[source] {
			writeItem(&b, item)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSummary(b *strings.Builder, summary *enrich.BatchSummary) {
	b.WriteString("## Overview\n\n")
	if summary.OverallSummary != "" {
		b.WriteString(summary.OverallSummary)
		b.WriteString("\n\n")
	}
	for _, topic := range summary.HotTopics {
		if topic.Topic == "" {
			continue
		}
		if topic.Description != "" {
			fmt.Fprintf(b, "- **%s**: %s\n", topic.Topic, topic.Description)
		} else {
			fmt.Fprintf(b, "- **%s**\n", topic.Topic)
		}
	}
	for _, insight := range summary.KeyInsights {
		fmt.Fprintf(b, "- %s\n", insight)
	}
	if len(summary.HotTopics) > 0 || len(summary.KeyInsights) > 0 {
		b.WriteString("\n")
	}
	if summary.Recommendation != "" {
		fmt.Fprintf(b, "_%s_\n\n", summary.Recommendation)
	}
}

func writeItem(b *strings.Builder, item *storage.Item) {
	heading := strings.TrimSpace(item.Title)
	if heading == "" {
		heading = excerpt(item.Body, 80)
	}
	fmt.Fprintf(b, "### %s\n\n", heading)

	if analysis := decodeAnalysis(item.AnalysisJSON); analysis != nil {
		if analysis.Summary != "" {
			fmt.Fprintf(b, "%s\n\n", analysis.Summary)
		}
		for i, point := range analysis.KeyPoints {
			if i == 3 {
				break
			}
			fmt.Fprintf(b, "- %s\n", point)
		}
		if len(analysis.KeyPoints) > 0 {
			b.WriteString("\n")
		}
	} else if body := excerpt(item.Body, bodyExcerptRunes); body != "" {
		fmt.Fprintf(b, "%s\n\n", body)
	}

	var meta []string
	if item.Author != "" {
		meta = append(meta, "@"+item.Author)
	}
	if line := metricsLine(item.MetricsJSON); line != "" {
		meta = append(meta, line)
	}
	meta = append(meta, fmt.Sprintf("quality %.2f", item.QualityScore))
	fmt.Fprintf(b, "%s\n", strings.Join(meta, " | "))

	if item.URL != "" {
		fmt.Fprintf(b, "\n[open](%s)\n", item.URL)
	}
	b.WriteString("\n")
}

func decodeAnalysis(analysisJSON string) *enrich.Analysis {
	if strings.TrimSpace(analysisJSON) == "" {
		return nil
	}
	var analysis enrich.Analysis
	if err := json.Unmarshal([]byte(analysisJSON), &analysis); err != nil {
		return nil
	}
	return &analysis
}

func metricsLine(metricsJSON string) string {
	if strings.TrimSpace(metricsJSON) == "" {
		return ""
	}
	var metrics map[string]int64
	if err := json.Unmarshal([]byte(metricsJSON), &metrics); err != nil {
		return ""
	}
	var parts []string
	for _, key := range []string{"likes", "retweets", "views", "comments"} {
		if value := metrics[key]; value > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", key, formatCount(value)))
		}
	}
	return strings.Join(parts, ", ")
}

func formatCount(value int64) string {
	switch {
	case value >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(value)/1_000_000)
	case value >= 1_000:
		return fmt.Sprintf("%.1fK", float64(value)/1_000)
	default:
		return fmt.Sprintf("%d", value)
	}
}

func excerpt(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
