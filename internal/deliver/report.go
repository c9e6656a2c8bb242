package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"newshound/internal/enrich"
	"newshound/internal/logging"
	"newshound/internal/storage"
)

const (
	dailyReportLimit     = 200
	weeklyReportLimit    = 500
	dailySummaryItems    = 30
	weeklySummaryItems   = 50
	reportTopItems       = 10
	weeklyTopAuthors     = 5
	weeklyAuthorMinItems = 1
)

// ReportStore is the slice of the store the reporter needs.
type ReportStore interface {
	ItemsForReport(ctx context.Context, since time.Time, limit int) ([]*storage.Item, error)
}

// ReportResult summarizes one report run.
type ReportResult struct {
	Items   int
	Skipped bool
}

// Reporter builds the periodic recap reports: a daily newsletter over the
// last 24 hours and a weekly roundup over the last 7 days. Reports reuse
// the digest sender and are independent of delivery windows, so an item
// can appear in both a digest and a report.
type Reporter struct {
	store      ReportStore
	sender     Sender
	summarizer BatchSummarizer
	settings   DeliverySettings
	logger     *slog.Logger
	loc        *time.Location
	now        func() time.Time
}

// ReporterDeps carries the reporter's collaborators.
type ReporterDeps struct {
	Store      ReportStore
	Sender     Sender
	Summarizer BatchSummarizer
	Settings   DeliverySettings
	Logger     *slog.Logger
	Location   *time.Location
}

// ReporterOption customizes reporter construction.
type ReporterOption func(*Reporter)

// WithReporterClock overrides the reporter's clock (useful for tests).
func WithReporterClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReporter constructs a report builder.
func NewReporter(deps ReporterDeps, opts ...ReporterOption) *Reporter {
	reporter := &Reporter{
		store:      deps.Store,
		sender:     deps.Sender,
		summarizer: deps.Summarizer,
		settings:   deps.Settings,
		logger:     logging.WithComponent(deps.Logger, "report"),
		loc:        deps.Location,
		now:        time.Now,
	}
	if reporter.loc == nil {
		reporter.loc = time.Local
	}
	for _, opt := range opts {
		opt(reporter)
	}
	return reporter
}

// RunDailyReport sends the last 24 hours as a newsletter-style recap.
func (r *Reporter) RunDailyReport(ctx context.Context) (ReportResult, error) {
	now := r.now().In(r.loc)
	return r.run(ctx, "daily", now.Add(-24*time.Hour), dailyReportLimit, dailySummaryItems,
		fmt.Sprintf("Newshound Daily Report %s", now.Format("2006-01-02")),
		func(items []*storage.Item, summary *enrich.BatchSummary) string {
			return BuildDailyReport(items, summary)
		})
}

// RunWeeklyReport sends the last 7 days as a roundup.
func (r *Reporter) RunWeeklyReport(ctx context.Context) (ReportResult, error) {
	now := r.now().In(r.loc)
	since := now.Add(-7 * 24 * time.Hour)
	return r.run(ctx, "weekly", since, weeklyReportLimit, weeklySummaryItems,
		fmt.Sprintf("Newshound Weekly Report %s - %s", since.Format("01/02"), now.Format("01/02")),
		func(items []*storage.Item, summary *enrich.BatchSummary) string {
			return BuildWeeklyReport(items, summary)
		})
}

func (r *Reporter) run(ctx context.Context, kind string, since time.Time, limit, summaryItems int, title string, build func([]*storage.Item, *enrich.BatchSummary) string) (ReportResult, error) {
	var result ReportResult

	if !r.settings.DeliveryEnabled(ctx) {
		result.Skipped = true
		r.logger.Info("delivery disabled, skipping report", logging.String("report", kind))
		return result, nil
	}

	items, err := r.store.ItemsForReport(ctx, since.UTC(), limit)
	if err != nil {
		return result, fmt.Errorf("select %s report items: %w", kind, err)
	}
	if len(items) == 0 {
		r.logger.Info("nothing to report", logging.String("report", kind))
		return result, nil
	}

	var summary *enrich.BatchSummary
	if r.summarizer != nil {
		head := items
		if len(head) > summaryItems {
			head = head[:summaryItems]
		}
		summary, err = r.summarizer.SummarizeBatch(ctx, head)
		if err != nil {
			// The report still goes out without the trend section.
			summary = nil
			r.logger.Warn("report summary failed", logging.String("report", kind), logging.Error(err))
		}
	}

	if err := r.sender.Send(ctx, title, build(items, summary)); err != nil {
		return result, fmt.Errorf("send %s report: %w", kind, err)
	}

	result.Items = len(items)
	r.logger.Info("report sent",
		logging.String("report", kind),
		logging.Int("items", result.Items),
	)
	return result, nil
}

// BuildDailyReport renders the daily recap: capture counts per source, the
// optional trend overview, and the top items.
func BuildDailyReport(items []*storage.Item, summary *enrich.BatchSummary) string {
	var b strings.Builder

	writeSourceCounts(&b, items, "Collected")
	if summary != nil {
		writeSummary(&b, summary)
	}
	writeTopItems(&b, items)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// BuildWeeklyReport renders the weekly roundup, which adds the most active
// authors on top of the daily layout.
func BuildWeeklyReport(items []*storage.Item, summary *enrich.BatchSummary) string {
	var b strings.Builder

	writeSourceCounts(&b, items, "Collected this week")
	writeTopAuthors(&b, items)
	if summary != nil {
		writeSummary(&b, summary)
	}
	writeTopItems(&b, items)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSourceCounts(b *strings.Builder, items []*storage.Item, label string) {
	counts := make(map[string]int)
	var order []string
	for _, item := range items {
		if _, seen := counts[item.Source]; !seen {
			order = append(order, item.Source)
		}
		counts[item.Source]++
	}

	fmt.Fprintf(b, "%s: **%d** items\n\n", label, len(items))
	for _, source := range order {
		fmt.Fprintf(b, "- %s: %d\n", titleCaser.String(source), counts[source])
	}
	b.WriteString("\n")
}

func writeTopAuthors(b *strings.Builder, items []*storage.Item) {
	counts := make(map[string]int)
	for _, item := range items {
		if item.Author != "" {
			counts[item.Author]++
		}
	}
	if len(counts) == 0 {
		return
	}

	type authorCount struct {
		name  string
		items int
	}
	authors := make([]authorCount, 0, len(counts))
	for name, n := range counts {
		if n >= weeklyAuthorMinItems {
			authors = append(authors, authorCount{name: name, items: n})
		}
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].items != authors[j].items {
			return authors[i].items > authors[j].items
		}
		return authors[i].name < authors[j].name
	})
	if len(authors) > weeklyTopAuthors {
		authors = authors[:weeklyTopAuthors]
	}

	b.WriteString("## Active Authors\n\n")
	for _, author := range authors {
		fmt.Fprintf(b, "- @%s (%d items)\n", author.name, author.items)
	}
	b.WriteString("\n")
}

func writeTopItems(b *strings.Builder, items []*storage.Item) {
	b.WriteString("## Top Items\n\n")
	for i, item := range items {
		if i == reportTopItems {
			break
		}
		heading := strings.TrimSpace(item.Title)
		if heading == "" {
			heading = excerpt(item.Body, 80)
		}
		fmt.Fprintf(b, "%d. **%s**", i+1, heading)
		if item.Author != "" {
			fmt.Fprintf(b, " - @%s", item.Author)
		}
		if item.URL != "" {
			fmt.Fprintf(b, " [open](%s)", item.URL)
		}
		b.WriteString("\n")
	}
}
