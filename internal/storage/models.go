package storage

import (
	"fmt"
	"strings"
	"time"
)

// SubscriptionStatus enumerates subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionPaused  SubscriptionStatus = "paused"
	SubscriptionDeleted SubscriptionStatus = "deleted"
)

// ParseSubscriptionStatus converts user input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	switch SubscriptionStatus(strings.ToLower(strings.TrimSpace(value))) {
	case SubscriptionActive:
		return SubscriptionActive, nil
	case SubscriptionPaused:
		return SubscriptionPaused, nil
	case SubscriptionDeleted:
		return SubscriptionDeleted, nil
	default:
		return "", fmt.Errorf("unknown subscription status %q", value)
	}
}

// Subscription types describe what the target field means.
const (
	SubscriptionKeyword = "keyword"
	SubscriptionAuthor  = "author"
	SubscriptionTopic   = "topic"
)

// Subscription is a recurring fetch target: a keyword query, an author,
// or a topic on a specific source.
type Subscription struct {
	ID              int64
	Name            string
	Source          string
	Type            string
	Target          string
	FetchInterval   int
	AnalysisEnabled bool
	DeliveryEnabled bool
	Status          SubscriptionStatus
	LastFetchedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Due reports whether the subscription should be fetched at the given time.
// Never-fetched subscriptions are always due.
func (s *Subscription) Due(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	if s.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*s.LastFetchedAt) >= time.Duration(s.FetchInterval)*time.Second
}

// Item is one piece of content captured from a source. ExternalID plus
// Source form the natural key; a second capture of the same item updates
// the fetch-derived fields in place.
type Item struct {
	ID             int64
	ExternalID     string
	Source         string
	SubscriptionID *int64
	Author         string
	AuthorID       string
	Title          string
	Body           string
	Transcript     string
	URL            string
	MetricsJSON    string
	MediaJSON      string
	AnalysisJSON   string
	EnrichedAt     *time.Time
	RelevanceScore float64
	QualityScore   float64
	Delivered      bool
	DeliveredAt    *time.Time
	PublishedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FetchRunStatus enumerates fetch run outcomes.
type FetchRunStatus string

const (
	FetchRunSuccess FetchRunStatus = "success"
	FetchRunFailed  FetchRunStatus = "failed"
)

// FetchRun records one fetch attempt for audit and status reporting.
type FetchRun struct {
	ID             int64
	CycleID        string
	SubscriptionID *int64
	Source         string
	Status         FetchRunStatus
	TotalFetched   int
	NewItems       int
	UpdatedItems   int
	FilteredItems  int
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// BudgetEntry is one append-only ledger row of committed API spend.
// Day is the calendar day in the service timezone ("2006-01-02").
type BudgetEntry struct {
	ID        int64
	Source    string
	Operation string
	Units     int
	Context   string
	Detail    string
	Day       string
	CreatedAt time.Time
}
