package sources

import (
	"context"
	"time"
)

// Canonical metric keys. Adapters normalize platform metrics into these
// so scoring never needs to know platform field names.
const (
	MetricLikes    = "likes"
	MetricRetweets = "retweets"
	MetricReplies  = "replies"
	MetricViews    = "views"
	MetricComments = "comments"
)

// Author identifies the creator of a piece of content.
type Author struct {
	Name      string
	ID        string
	Verified  bool
	Followers int
}

// Candidate is a normalized piece of content produced by an adapter before
// filtering and storage.
type Candidate struct {
	ExternalID  string
	Source      string
	Author      Author
	Title       string
	Body        string
	Transcript  string
	URL         string
	Metrics     map[string]int64
	Media       []string
	PublishedAt *time.Time
}

// Metric returns a metric value, treating missing keys as zero.
func (c *Candidate) Metric(key string) int64 {
	if c.Metrics == nil {
		return 0
	}
	return c.Metrics[key]
}

// Operation names the adapter calls that may carry a budget cost.
type Operation string

const (
	OpSearch Operation = "search"
	OpAuthor Operation = "author"
	OpTrends Operation = "trends"
)

// Adapter is a content source boundary. Implementations own their HTTP
// handling; failures surface as errors, never panics.
type Adapter interface {
	Kind() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
	FetchForAuthor(ctx context.Context, author string, limit int) ([]Candidate, error)
	// Cost reports the budget units one call of the operation consumes.
	// Zero means the operation is free and skips budget gating.
	Cost(op Operation) int
}

// TopicTrender is implemented by adapters that expose trending topic names
// suitable for follow-up searches.
type TopicTrender interface {
	TrendingTopics(ctx context.Context, woeid int) ([]string, error)
}

// ContentTrender is implemented by adapters whose trending surface returns
// content directly.
type ContentTrender interface {
	TrendingContent(ctx context.Context, region string, limit int) ([]Candidate, error)
}

// Registry holds the configured adapters keyed by source kind.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry from the given adapters. Later adapters with
// a duplicate kind replace earlier ones.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		kind := adapter.Kind()
		if _, exists := r.adapters[kind]; !exists {
			r.order = append(r.order, kind)
		}
		r.adapters[kind] = adapter
	}
	return r
}

// Get returns the adapter for a source kind.
func (r *Registry) Get(kind string) (Adapter, bool) {
	adapter, ok := r.adapters[kind]
	return adapter, ok
}

// Kinds returns registered source kinds in registration order.
func (r *Registry) Kinds() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
