package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"newshound/internal/config"
	"newshound/internal/logging"
)

// startLoop runs fn serially on a fixed interval until ctx is canceled.
// Each loop owns one goroutine, so a stage never overlaps itself.
func (d *Daemon) startLoop(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logger := d.logger.With(logging.String("stage", name))

		if immediate {
			d.runStage(ctx, logger, fn)
		}

		timer := time.NewTimer(interval)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			d.runStage(ctx, logger, fn)
			timer.Reset(interval)
		}
	}()
}

// startDeliveryLoop sleeps until the next configured wall-clock time in the
// schedule timezone, runs one delivery batch, and repeats.
func (d *Daemon) startDeliveryLoop(ctx context.Context) {
	times := d.cfg.Schedule.DeliveryTimes
	if len(times) == 0 {
		return
	}
	loc := d.cfg.Location()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logger := d.logger.With(logging.String("stage", "deliver"))

		for {
			next, err := nextDelivery(d.now().In(loc), times)
			if err != nil {
				logger.Error("invalid delivery schedule", logging.Error(err))
				return
			}
			wait := time.Until(next)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			d.runStage(ctx, logger, func(ctx context.Context) error {
				result, err := d.stages.Deliverer.RunDeliveryBatch(ctx)
				if err != nil {
					return err
				}
				if result.Delivered > 0 {
					logger.Info("digest sent", logging.Int("items", result.Delivered))
				}
				return nil
			})
		}
	}()
}

// startReportLoops schedules the daily recap at its configured wall-clock
// time and the weekly roundup on its configured weekday.
func (d *Daemon) startReportLoops(ctx context.Context) {
	loc := d.cfg.Location()

	if value := d.cfg.Schedule.DailyReportTime; value != "" {
		d.startWallClockLoop(ctx, "report-daily", func(now time.Time) (time.Time, error) {
			return nextDelivery(now.In(loc), []string{value})
		}, func(ctx context.Context, logger *slog.Logger) error {
			result, err := d.stages.Reporter.RunDailyReport(ctx)
			if err != nil {
				return err
			}
			if result.Items > 0 {
				logger.Info("daily report sent", logging.Int("items", result.Items))
			}
			return nil
		})
	}

	day, err := config.ParseWeekday(d.cfg.Schedule.WeeklyReportDay)
	if err != nil {
		return
	}
	if value := d.cfg.Schedule.WeeklyReportTime; value != "" {
		d.startWallClockLoop(ctx, "report-weekly", func(now time.Time) (time.Time, error) {
			hour, minute, err := parseClock(value)
			if err != nil {
				return time.Time{}, err
			}
			return nextWeekly(now.In(loc), day, hour, minute), nil
		}, func(ctx context.Context, logger *slog.Logger) error {
			result, err := d.stages.Reporter.RunWeeklyReport(ctx)
			if err != nil {
				return err
			}
			if result.Items > 0 {
				logger.Info("weekly report sent", logging.Int("items", result.Items))
			}
			return nil
		})
	}
}

// startWallClockLoop sleeps until the time produced by next, runs fn once,
// and repeats until ctx is canceled.
func (d *Daemon) startWallClockLoop(ctx context.Context, name string, next func(time.Time) (time.Time, error), fn func(context.Context, *slog.Logger) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logger := d.logger.With(logging.String("stage", name))

		for {
			at, err := next(d.now())
			if err != nil {
				logger.Error("invalid schedule", logging.Error(err))
				return
			}

			timer := time.NewTimer(time.Until(at))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			d.runStage(ctx, logger, func(ctx context.Context) error {
				return fn(ctx, logger)
			})
		}
	}()
}

func (d *Daemon) runStage(ctx context.Context, logger *slog.Logger, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stage run failed", logging.Error(err))
	}
}

// nextDelivery returns the earliest configured wall-clock time strictly
// after now, today or tomorrow, in now's location.
func nextDelivery(now time.Time, times []string) (time.Time, error) {
	var next time.Time
	for _, value := range times {
		hour, minute, err := parseClock(value)
		if err != nil {
			return time.Time{}, err
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	if next.IsZero() {
		return time.Time{}, errors.New("no delivery times configured")
	}
	return next, nil
}

// nextWeekly returns the next occurrence of the given weekday and
// wall-clock time strictly after now, in now's location.
func nextWeekly(now time.Time, day time.Weekday, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	days := (int(day) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid delivery time %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid delivery time %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid delivery time %q", value)
	}
	return hour, minute, nil
}
