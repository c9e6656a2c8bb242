package filter

import (
	"strings"

	"newshound/internal/sources"
)

// RelevanceScore rates how well a candidate matches a subscription target.
// Targets may hold several terms joined with " OR " or "|"; a match on any
// term contributes. An empty target yields a neutral 0.5.
func RelevanceScore(c *sources.Candidate, target string) float64 {
	terms := splitTarget(target)
	if len(terms) == 0 {
		return 0.5
	}

	title := strings.ToLower(c.Title)
	body := strings.ToLower(c.Body)
	authorName := strings.ToLower(c.Author.Name)
	authorID := strings.ToLower(c.Author.ID)

	var score float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += 0.4
		}
		if strings.Contains(body, term) {
			score += 0.3
		}
		if strings.Contains(authorName, term) || strings.Contains(authorID, term) {
			score += 0.3
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func splitTarget(target string) []string {
	normalized := strings.ReplaceAll(target, " OR ", "|")
	parts := strings.Split(normalized, "|")
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		term := strings.ToLower(strings.TrimSpace(part))
		term = strings.TrimLeft(term, "@#")
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}
