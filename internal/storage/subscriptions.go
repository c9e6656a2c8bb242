package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"newshound/internal/services"
)

const subscriptionColumns = "id, name, source, type, target, fetch_interval, analysis_enabled, delivery_enabled, status, last_fetched_at, created_at, updated_at"

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*Subscription, error) {
	var (
		id              int64
		name            string
		source          string
		subType         string
		target          string
		fetchInterval   int
		analysisEnabled int
		deliveryEnabled int
		status          string
		lastFetchedRaw  sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&source,
		&subType,
		&target,
		&fetchInterval,
		&analysisEnabled,
		&deliveryEnabled,
		&status,
		&lastFetchedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:              id,
		Name:            name,
		Source:          source,
		Type:            subType,
		Target:          target,
		FetchInterval:   fetchInterval,
		AnalysisEnabled: analysisEnabled != 0,
		DeliveryEnabled: deliveryEnabled != 0,
		Status:          SubscriptionStatus(status),
		LastFetchedAt:   timePointer(lastFetchedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sub.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sub.UpdatedAt = updated
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription and populates its ID and
// timestamps.
func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return errors.New("subscription required")
	}
	if strings.TrimSpace(sub.Name) == "" || strings.TrimSpace(sub.Source) == "" || strings.TrimSpace(sub.Target) == "" {
		return services.Wrap(services.ErrValidation, "storage", "create subscription", "name, source, and target are required", nil)
	}
	if sub.Status == "" {
		sub.Status = SubscriptionActive
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	res, err := s.execWithRetry(ctx, `
		INSERT INTO subscriptions (name, source, type, target, fetch_interval, analysis_enabled, delivery_enabled, status, last_fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Name,
		sub.Source,
		sub.Type,
		sub.Target,
		sub.FetchInterval,
		boolToInt(sub.AnalysisEnabled),
		boolToInt(sub.DeliveryEnabled),
		string(sub.Status),
		nullableTime(sub.LastFetchedAt),
		timeValue(sub.CreatedAt),
		timeValue(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("subscription insert id: %w", err)
	}
	sub.ID = id
	return nil
}

// GetSubscription loads a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "storage", "get subscription", fmt.Sprintf("subscription %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions, optionally filtered by status.
// With no filter, deleted subscriptions are excluded.
func (s *Store) ListSubscriptions(ctx context.Context, statuses ...SubscriptionStatus) ([]*Subscription, error) {
	ctx = ensureContext(ctx)

	query := "SELECT " + subscriptionColumns + " FROM subscriptions"
	args := make([]any, 0, len(statuses))
	if len(statuses) == 0 {
		query += " WHERE status != ?"
		args = append(args, string(SubscriptionDeleted))
	} else {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubscription persists mutable subscription fields.
func (s *Store) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.ID == 0 {
		return errors.New("subscription with id required")
	}
	sub.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		UPDATE subscriptions
		SET name = ?, source = ?, type = ?, target = ?, fetch_interval = ?, analysis_enabled = ?, delivery_enabled = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		sub.Name,
		sub.Source,
		sub.Type,
		sub.Target,
		sub.FetchInterval,
		boolToInt(sub.AnalysisEnabled),
		boolToInt(sub.DeliveryEnabled),
		string(sub.Status),
		timeValue(sub.UpdatedAt),
		sub.ID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "storage", "update subscription", fmt.Sprintf("subscription %d", sub.ID), nil)
	}
	return nil
}

// SetSubscriptionStatus transitions a subscription's lifecycle state.
// Deletion is soft; rows are retained for item attribution.
func (s *Store) SetSubscriptionStatus(ctx context.Context, id int64, status SubscriptionStatus) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?",
		string(status), timeValue(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set subscription status affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "storage", "set subscription status", fmt.Sprintf("subscription %d", id), nil)
	}
	return nil
}

// DueSubscriptions returns active subscriptions whose fetch interval has
// elapsed (or that have never been fetched), ordered by staleness.
func (s *Store) DueSubscriptions(ctx context.Context, now time.Time) ([]*Subscription, error) {
	subs, err := s.ListSubscriptions(ctx, SubscriptionActive)
	if err != nil {
		return nil, err
	}
	due := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Due(now) {
			due = append(due, sub)
		}
	}
	// Never-fetched first, then oldest fetch first.
	sort.SliceStable(due, func(i, j int) bool {
		return subLessStale(due[i], due[j])
	})
	return due, nil
}

func subLessStale(a, b *Subscription) bool {
	switch {
	case a.LastFetchedAt == nil && b.LastFetchedAt != nil:
		return true
	case a.LastFetchedAt != nil && b.LastFetchedAt == nil:
		return false
	case a.LastFetchedAt == nil && b.LastFetchedAt == nil:
		return a.ID < b.ID
	default:
		return a.LastFetchedAt.Before(*b.LastFetchedAt)
	}
}

// MarkSubscriptionFetched advances the subscription's last fetch time.
func (s *Store) MarkSubscriptionFetched(ctx context.Context, id int64, fetchedAt time.Time) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE subscriptions SET last_fetched_at = ?, updated_at = ? WHERE id = ?",
		timeValue(fetchedAt), timeValue(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark subscription fetched: %w", err)
	}
	return nil
}

// NormalizeFetchIntervals raises any fetch interval below min to min and
// returns the number of adjusted rows. Run at daemon startup.
func (s *Store) NormalizeFetchIntervals(ctx context.Context, min int) (int64, error) {
	if min <= 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE subscriptions SET fetch_interval = ?, updated_at = ? WHERE fetch_interval < ?",
		min, timeValue(time.Now()), min,
	)
	if err != nil {
		return 0, fmt.Errorf("normalize fetch intervals: %w", err)
	}
	return res.RowsAffected()
}
