package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newshound/internal/services"
)

const itemColumns = "id, external_id, source, subscription_id, author, author_id, title, body, transcript, url, metrics_json, media_json, analysis_json, enriched_at, relevance_score, quality_score, delivered, delivered_at, published_at, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             int64
		externalID     string
		source         string
		subscriptionID sql.NullInt64
		author         sql.NullString
		authorID       sql.NullString
		title          sql.NullString
		body           sql.NullString
		transcript     sql.NullString
		url            sql.NullString
		metricsJSON    sql.NullString
		mediaJSON      sql.NullString
		analysisJSON   sql.NullString
		enrichedRaw    sql.NullString
		relevance      sql.NullFloat64
		quality        sql.NullFloat64
		delivered      sql.NullInt64
		deliveredRaw   sql.NullString
		publishedRaw   sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&externalID,
		&source,
		&subscriptionID,
		&author,
		&authorID,
		&title,
		&body,
		&transcript,
		&url,
		&metricsJSON,
		&mediaJSON,
		&analysisJSON,
		&enrichedRaw,
		&relevance,
		&quality,
		&delivered,
		&deliveredRaw,
		&publishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:             id,
		ExternalID:     externalID,
		Source:         source,
		Author:         author.String,
		AuthorID:       authorID.String,
		Title:          title.String,
		Body:           body.String,
		Transcript:     transcript.String,
		URL:            url.String,
		MetricsJSON:    metricsJSON.String,
		MediaJSON:      mediaJSON.String,
		AnalysisJSON:   analysisJSON.String,
		EnrichedAt:     timePointer(enrichedRaw),
		RelevanceScore: relevance.Float64,
		QualityScore:   quality.Float64,
		DeliveredAt:    timePointer(deliveredRaw),
		PublishedAt:    timePointer(publishedRaw),
	}
	if subscriptionID.Valid {
		value := subscriptionID.Int64
		item.SubscriptionID = &value
	}
	if delivered.Valid {
		item.Delivered = delivered.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

// UpsertItem stores a captured item. A row already holding the natural key
// (external_id, source) has its fetch-derived fields refreshed; enrichment
// and delivery state are never touched by an upsert. Reports whether a new
// row was inserted.
func (s *Store) UpsertItem(ctx context.Context, item *Item) (bool, error) {
	if item == nil {
		return false, errors.New("item required")
	}
	if strings.TrimSpace(item.ExternalID) == "" || strings.TrimSpace(item.Source) == "" {
		return false, services.Wrap(services.ErrValidation, "storage", "upsert item", "external id and source are required", nil)
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM items WHERE external_id = ? AND source = ?",
		item.ExternalID, item.Source,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		item.CreatedAt = now
		item.UpdatedAt = now
		res, insertErr := s.execWithRetry(ctx, `
			INSERT INTO items (external_id, source, subscription_id, author, author_id, title, body, transcript, url, metrics_json, media_json, relevance_score, quality_score, published_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ExternalID,
			item.Source,
			nullableInt64(item.SubscriptionID),
			nullableString(item.Author),
			nullableString(item.AuthorID),
			nullableString(item.Title),
			nullableString(item.Body),
			nullableString(item.Transcript),
			nullableString(item.URL),
			nullableString(item.MetricsJSON),
			nullableString(item.MediaJSON),
			item.RelevanceScore,
			item.QualityScore,
			nullableTime(item.PublishedAt),
			timeValue(item.CreatedAt),
			timeValue(item.UpdatedAt),
		)
		if insertErr != nil {
			return false, fmt.Errorf("insert item: %w", insertErr)
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return false, fmt.Errorf("item insert id: %w", idErr)
		}
		item.ID = id
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup item: %w", err)
	}

	item.ID = existingID
	item.UpdatedAt = now
	_, err = s.execWithRetry(ctx, `
		UPDATE items
		SET subscription_id = COALESCE(?, subscription_id), author = ?, author_id = ?, title = ?, body = ?, transcript = ?, url = ?, metrics_json = ?, media_json = ?, relevance_score = ?, quality_score = ?, published_at = ?, updated_at = ?
		WHERE id = ?`,
		nullableInt64(item.SubscriptionID),
		nullableString(item.Author),
		nullableString(item.AuthorID),
		nullableString(item.Title),
		nullableString(item.Body),
		nullableString(item.Transcript),
		nullableString(item.URL),
		nullableString(item.MetricsJSON),
		nullableString(item.MediaJSON),
		item.RelevanceScore,
		item.QualityScore,
		nullableTime(item.PublishedAt),
		timeValue(item.UpdatedAt),
		existingID,
	)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	return false, nil
}

// ItemExists reports whether content with the natural key is already stored.
func (s *Store) ItemExists(ctx context.Context, externalID, source string) (bool, error) {
	ctx = ensureContext(ctx)
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM items WHERE external_id = ? AND source = ?",
		externalID, source,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("item exists: %w", err)
	}
	return true, nil
}

// GetItem loads an item by ID.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "storage", "get item", fmt.Sprintf("item %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// UnenrichedPrioritized returns items awaiting analysis in processing order:
// subscription-bound items before explore finds, newest publish time first
// with unknown publish times last, then stable by ID.
func (s *Store) UnenrichedPrioritized(ctx context.Context, limit int) ([]*Item, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE enriched_at IS NULL
		ORDER BY (subscription_id IS NULL) ASC, (published_at IS NULL) ASC, published_at DESC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unenriched: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// SetEnrichment stores the analysis payload and stamps the item enriched.
func (s *Store) SetEnrichment(ctx context.Context, id int64, analysisJSON string, enrichedAt time.Time) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE items SET analysis_json = ?, enriched_at = ?, updated_at = ? WHERE id = ?",
		nullableString(analysisJSON), timeValue(enrichedAt), timeValue(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set enrichment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enrichment affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "storage", "set enrichment", fmt.Sprintf("item %d", id), nil)
	}
	return nil
}

// EnrichedUndeliveredBetween returns delivery candidates whose enrichment
// completed inside (start, end], best quality first.
func (s *Store) EnrichedUndeliveredBetween(ctx context.Context, start, end time.Time, limit int) ([]*Item, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE enriched_at IS NOT NULL AND delivered = 0 AND enriched_at > ? AND enriched_at <= ?
		ORDER BY quality_score DESC, id ASC
		LIMIT ?`,
		timeValue(start), timeValue(end), limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery candidates: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ItemsForReport returns the best items captured since the cutoff, best
// quality first. Items without a publish time fall back to their capture
// time so feed entries still make the report.
func (s *Store) ItemsForReport(ctx context.Context, since time.Time, limit int) ([]*Item, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE COALESCE(published_at, created_at) >= ?
		ORDER BY quality_score DESC, id ASC
		LIMIT ?`,
		timeValue(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list report items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// MarkDelivered flags the given items as delivered with a shared timestamp.
func (s *Store) MarkDelivered(ctx context.Context, ids []int64, deliveredAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, timeValue(deliveredAt), timeValue(time.Now()))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.execWithRetry(ctx,
		"UPDATE items SET delivered = 1, delivered_at = ?, updated_at = ? WHERE id IN ("+makePlaceholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// LastDeliveredAt returns the most recent delivery timestamp, or nil when
// nothing has been delivered yet.
func (s *Store) LastDeliveredAt(ctx context.Context) (*time.Time, error) {
	ctx = ensureContext(ctx)
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MAX(delivered_at) FROM items WHERE delivered = 1").Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("last delivered at: %w", err)
	}
	return timePointer(raw), nil
}

// Stats summarizes pipeline state for status reporting.
type Stats struct {
	TotalItems     int
	Unenriched     int
	Undelivered    int
	DeliveredItems int
	Subscriptions  int
}

// ItemStats returns aggregate pipeline counters.
func (s *Store) ItemStats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN enriched_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN enriched_at IS NOT NULL AND delivered = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN delivered = 1 THEN 1 ELSE 0 END), 0)
		FROM items`,
	).Scan(&stats.TotalItems, &stats.Unenriched, &stats.Undelivered, &stats.DeliveredItems)
	if err != nil {
		return Stats{}, fmt.Errorf("item stats: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE status = ?", string(SubscriptionActive),
	).Scan(&stats.Subscriptions)
	if err != nil {
		return Stats{}, fmt.Errorf("subscription stats: %w", err)
	}
	return stats, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
