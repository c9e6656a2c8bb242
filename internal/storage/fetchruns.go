package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecordFetchRun appends the outcome of one fetch attempt.
func (s *Store) RecordFetchRun(ctx context.Context, run *FetchRun) error {
	if run == nil {
		return errors.New("fetch run required")
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO fetch_runs (cycle_id, subscription_id, source, status, total_fetched, new_items, updated_items, filtered_items, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CycleID,
		nullableInt64(run.SubscriptionID),
		run.Source,
		string(run.Status),
		run.TotalFetched,
		run.NewItems,
		run.UpdatedItems,
		run.FilteredItems,
		nullableString(run.ErrorMessage),
		timeValue(run.StartedAt),
		timeValue(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record fetch run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("fetch run insert id: %w", err)
	}
	run.ID = id
	return nil
}

// RecentFetchRuns returns the newest fetch runs for status reporting.
func (s *Store) RecentFetchRuns(ctx context.Context, limit int) ([]*FetchRun, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, subscription_id, source, status, total_fetched, new_items, updated_items, filtered_items, error_message, started_at, finished_at
		FROM fetch_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []*FetchRun
	for rows.Next() {
		var (
			run            FetchRun
			subscriptionID sql.NullInt64
			status         string
			errorMessage   sql.NullString
			startedRaw     sql.NullString
			finishedRaw    sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.CycleID,
			&subscriptionID,
			&run.Source,
			&status,
			&run.TotalFetched,
			&run.NewItems,
			&run.UpdatedItems,
			&run.FilteredItems,
			&errorMessage,
			&startedRaw,
			&finishedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan fetch run: %w", err)
		}
		run.Status = FetchRunStatus(status)
		run.ErrorMessage = errorMessage.String
		if subscriptionID.Valid {
			value := subscriptionID.Int64
			run.SubscriptionID = &value
		}
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = started
		}
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = finished
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
