package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newshound/internal/logging"
	"newshound/internal/services"
	"newshound/internal/storage"
)

const dayFormat = "2006-01-02"

// Ledger is the slice of the store the controller needs.
type Ledger interface {
	AppendBudgetEntry(ctx context.Context, entry *storage.BudgetEntry) error
	BudgetUnitsForDay(ctx context.Context, source, day string) (int, error)
}

// LimitFunc returns the current daily unit ceiling. A non-positive value
// disables enforcement.
type LimitFunc func(ctx context.Context) int

// Controller meters API spend for one source against a daily ceiling. The
// in-memory counter is rehydrated from the ledger on the first check of each
// calendar day, so restarts never forget spend already committed.
type Controller struct {
	mu     sync.Mutex
	store  Ledger
	logger *slog.Logger
	source string
	limit  LimitFunc
	loc    *time.Location
	now    func() time.Time

	day      string
	used     int
	reserved int
}

// Option customizes controller construction.
type Option func(*Controller)

// WithClock overrides the controller's clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController builds a budget controller for the given source. Days roll
// over at midnight in loc.
func NewController(store Ledger, logger *slog.Logger, source string, limit LimitFunc, loc *time.Location, opts ...Option) *Controller {
	if loc == nil {
		loc = time.Local
	}
	controller := &Controller{
		store:  store,
		logger: logging.WithComponent(logger, "budget"),
		source: source,
		limit:  limit,
		loc:    loc,
		now:    time.Now,
		day:    "",
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// Source returns the source this controller meters.
func (c *Controller) Source() string {
	return c.source
}

// Reserve is an atomic check-and-increment: a successful reservation holds
// the units until the caller either commits the completed call or releases
// a failed one. Two callers can therefore never pass the same remaining
// headroom at once.
func (c *Controller) Reserve(ctx context.Context, units int) (bool, error) {
	if units <= 0 {
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rollDayLocked(ctx); err != nil {
		return false, err
	}

	limit := c.limit(ctx)
	if limit > 0 && c.used+c.reserved+units > limit {
		c.logger.Warn("daily budget exhausted",
			logging.String(logging.FieldSource, c.source),
			logging.Int("used", c.used),
			logging.Int("reserved", c.reserved),
			logging.Int("requested", units),
			logging.Int("limit", limit),
		)
		return false, nil
	}
	c.reserved += units
	return true, nil
}

// Release returns a reservation whose API call failed, so the units never
// reach the ledger and become spendable again.
func (c *Controller) Release(units int) {
	if units <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reserved -= units
	if c.reserved < 0 {
		c.reserved = 0
	}
}

// Commit converts a reservation into committed spend: the units move from
// the in-flight counter into the ledger and the daily total.
func (c *Controller) Commit(ctx context.Context, operation string, units int, callContext, detail string) error {
	if units <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rollDayLocked(ctx); err != nil {
		return err
	}

	entry := &storage.BudgetEntry{
		Source:    c.source,
		Operation: operation,
		Units:     units,
		Context:   callContext,
		Detail:    detail,
		Day:       c.day,
	}
	if err := c.store.AppendBudgetEntry(ctx, entry); err != nil {
		return services.Wrap(services.ErrBudget, "budget", "commit", "record spend", err)
	}
	c.used += units
	c.reserved -= units
	if c.reserved < 0 {
		c.reserved = 0
	}
	return nil
}

// UsedToday returns committed spend for the current calendar day.
func (c *Controller) UsedToday(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rollDayLocked(ctx); err != nil {
		return 0, err
	}
	return c.used, nil
}

// Day returns the controller's current calendar day string.
func (c *Controller) Day() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day == "" {
		return c.now().In(c.loc).Format(dayFormat)
	}
	return c.day
}

func (c *Controller) rollDayLocked(ctx context.Context) error {
	today := c.now().In(c.loc).Format(dayFormat)
	if today == c.day {
		return nil
	}
	used, err := c.store.BudgetUnitsForDay(ctx, c.source, today)
	if err != nil {
		return fmt.Errorf("hydrate budget for %s: %w", today, err)
	}
	c.day = today
	c.used = used
	return nil
}
