package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if err := ensurePositiveMap(map[string]int{
		"schedule.fetch_check_interval":     c.Schedule.FetchCheckInterval,
		"schedule.explore_keyword_interval": c.Schedule.ExploreKeywordInterval,
		"schedule.explore_trend_interval":   c.Schedule.ExploreTrendInterval,
		"schedule.enrich_interval":          c.Schedule.EnrichInterval,
	}); err != nil {
		return err
	}
	for _, value := range c.Schedule.DeliveryTimes {
		if _, _, err := ParseClock(value); err != nil {
			return fmt.Errorf("schedule.delivery_times: %w", err)
		}
	}
	if _, _, err := ParseClock(c.Schedule.DailyReportTime); err != nil {
		return fmt.Errorf("schedule.daily_report_time: %w", err)
	}
	if _, err := ParseWeekday(c.Schedule.WeeklyReportDay); err != nil {
		return fmt.Errorf("schedule.weekly_report_day: %w", err)
	}
	if _, _, err := ParseClock(c.Schedule.WeeklyReportTime); err != nil {
		return fmt.Errorf("schedule.weekly_report_time: %w", err)
	}
	return nil
}

func (c *Config) validateFilter() error {
	if c.Filter.MinQualityScore < 0 || c.Filter.MinQualityScore > 1 {
		return errors.New("filter.min_quality_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MinInterval <= 0 {
		return errors.New("fetch.min_interval must be positive (seconds)")
	}
	if c.Fetch.DefaultInterval < c.Fetch.MinInterval {
		return errors.New("fetch.default_interval must not be below fetch.min_interval")
	}
	if c.Fetch.SearchLimit <= 0 {
		return errors.New("fetch.search_limit must be positive")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if !c.Delivery.Enabled {
		return nil
	}
	if c.Delivery.WebhookURL == "" {
		return errors.New("delivery.webhook_url must be set when delivery.enabled is true")
	}
	if len(c.Schedule.DeliveryTimes) == 0 {
		return errors.New("schedule.delivery_times must include at least one time when delivery.enabled is true")
	}
	return nil
}

// ParseClock parses a "HH:MM" wall-clock value.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.ToLower(day.String()) == name {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", value)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
