package filter

import (
	"math"
	"time"

	"newshound/internal/sources"
)

// Quality sub-score caps. The total never exceeds 1.0.
const (
	maxEngagementScore = 0.40
	maxRichnessScore   = 0.25
	maxFreshnessScore  = 0.15
	maxContextScore    = 0.10
	maxAuthorScore     = 0.10
)

// QualityScore rates a candidate on engagement, text richness, freshness,
// media context, and author signals. Pure given the candidate and clock;
// missing or malformed values score zero for their component.
func QualityScore(c *sources.Candidate, now time.Time) float64 {
	total := engagementScore(c) +
		richnessScore(c) +
		freshnessScore(c, now) +
		contextScore(c) +
		authorScore(c)
	if total > 1.0 {
		total = 1.0
	}
	return math.Round(total*10000) / 10000
}

func engagementScore(c *sources.Candidate) float64 {
	switch c.Source {
	case "twitter":
		weighted := c.Metric(sources.MetricLikes) +
			2*c.Metric(sources.MetricRetweets) +
			3*c.Metric(sources.MetricReplies)
		switch {
		case weighted > 5000:
			return maxEngagementScore
		case weighted > 1000:
			return 0.30
		case weighted > 100:
			return 0.20
		case weighted > 10:
			return 0.10
		case weighted > 0:
			return 0.03
		default:
			return 0
		}
	case "youtube":
		views := c.Metric(sources.MetricViews)
		switch {
		case views > 1_000_000:
			return maxEngagementScore
		case views > 100_000:
			return 0.30
		case views > 10_000:
			return 0.20
		case views > 1_000:
			return 0.12
		case views > 100:
			return 0.05
		}
		// No view data yet: fall back to likes.
		if views == 0 {
			likes := c.Metric(sources.MetricLikes)
			switch {
			case likes > 1000:
				return 0.25
			case likes > 100:
				return 0.15
			case likes > 10:
				return 0.08
			}
		}
		return 0
	default:
		return 0
	}
}

func richnessScore(c *sources.Candidate) float64 {
	var score float64
	textLen := len([]rune(c.Title)) + len([]rune(c.Body))
	switch {
	case textLen > 500:
		score = 0.20
	case textLen > 200:
		score = 0.15
	case textLen > 100:
		score = 0.10
	case textLen > 30:
		score = 0.05
	}
	if len([]rune(c.Transcript)) > 100 {
		score += 0.05
	}
	if score > maxRichnessScore {
		score = maxRichnessScore
	}
	return score
}

func freshnessScore(c *sources.Candidate, now time.Time) float64 {
	if c.PublishedAt == nil {
		// Unknown publish time is penalized but never zeroed.
		return 0.05
	}
	age := now.Sub(*c.PublishedAt)
	switch {
	case age < time.Hour:
		return maxFreshnessScore
	case age < 6*time.Hour:
		return 0.12
	case age < 24*time.Hour:
		return 0.10
	case age < 72*time.Hour:
		return 0.07
	case age < 168*time.Hour:
		return 0.04
	default:
		return 0.02
	}
}

func contextScore(c *sources.Candidate) float64 {
	var score float64
	if len(c.Media) > 0 {
		score += 0.05
	}
	if c.Transcript != "" {
		score += 0.05
	} else if c.Title != "" {
		score += 0.03
	}
	if score > maxContextScore {
		score = maxContextScore
	}
	return score
}

func authorScore(c *sources.Candidate) float64 {
	var score float64
	if c.Author.Name != "" || c.Author.ID != "" {
		score = 0.03
	}
	if c.Author.Verified {
		score += 0.05
	}
	if c.Author.Followers > 100_000 {
		score += 0.02
	}
	if score > maxAuthorScore {
		score = maxAuthorScore
	}
	return score
}
