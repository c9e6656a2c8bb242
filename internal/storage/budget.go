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

// AppendBudgetEntry records committed API spend in the append-only ledger.
func (s *Store) AppendBudgetEntry(ctx context.Context, entry *BudgetEntry) error {
	if entry == nil {
		return errors.New("budget entry required")
	}
	if strings.TrimSpace(entry.Source) == "" || strings.TrimSpace(entry.Day) == "" {
		return services.Wrap(services.ErrValidation, "storage", "append budget entry", "source and day are required", nil)
	}
	if entry.Units < 0 {
		return services.Wrap(services.ErrValidation, "storage", "append budget entry", "units must not be negative", nil)
	}
	entry.CreatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		INSERT INTO budget_ledger (source, operation, units, context, detail, day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Source,
		entry.Operation,
		entry.Units,
		nullableString(entry.Context),
		nullableString(entry.Detail),
		entry.Day,
		timeValue(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append budget entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget entry insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// BudgetUnitsForDay sums committed units for a source on one calendar day.
func (s *Store) BudgetUnitsForDay(ctx context.Context, source, day string) (int, error) {
	ctx = ensureContext(ctx)
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT SUM(units) FROM budget_ledger WHERE source = ? AND day = ?",
		source, day,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("budget units for day: %w", err)
	}
	return int(total.Int64), nil
}

// RecentBudgetEntries returns the newest ledger rows for inspection.
func (s *Store) RecentBudgetEntries(ctx context.Context, limit int) ([]*BudgetEntry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, operation, units, context, detail, day, created_at
		FROM budget_ledger
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent budget entries: %w", err)
	}
	defer rows.Close()

	var entries []*BudgetEntry
	for rows.Next() {
		var (
			entry      BudgetEntry
			contextRaw sql.NullString
			detailRaw  sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Source, &entry.Operation, &entry.Units, &contextRaw, &detailRaw, &entry.Day, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan budget entry: %w", err)
		}
		entry.Context = contextRaw.String
		entry.Detail = detailRaw.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
