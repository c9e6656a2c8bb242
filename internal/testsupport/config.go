package testsupport

import (
	"path/filepath"
	"testing"

	"newshound/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Delivery.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBudgetLimit sets the daily budget limit on the test config.
func WithBudgetLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Budget.DailyLimit = limit
	}
}

// WithDelivery enables delivery against the given webhook URL.
func WithDelivery(webhookURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Delivery.Enabled = true
		cfg.Delivery.WebhookURL = webhookURL
	}
}
