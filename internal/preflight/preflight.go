package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"newshound/internal/config"
	"newshound/internal/storage"
)

// Result is the outcome of one readiness check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Low disk space below this threshold fails the data directory check.
const minFreeBytes = 512 * 1024 * 1024

// Run executes every readiness check and returns the results in a stable
// order. A nil store skips the database check.
func Run(ctx context.Context, cfg *config.Config, store *storage.Store) []Result {
	results := []Result{
		CheckDataDir(cfg.Paths.DataDir),
	}
	if store != nil {
		results = append(results, CheckDatabase(ctx, store))
	}
	results = append(results,
		CheckSourceKey("Twitter API", cfg.Twitter.APIKey),
		CheckSourceKey("YouTube API", cfg.YouTube.APIKey),
		CheckLLM(cfg),
		CheckWebhook(cfg),
	)
	return results
}

// CheckDataDir verifies the data directory is writable and has headroom.
func CheckDataDir(dir string) Result {
	const name = "Data directory"
	if dir == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not creatable: %v", err)}
	}

	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not writable: %v", err)}
	}
	probePath := probe.Name()
	probe.Close()
	os.Remove(probePath)

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err == nil {
		free := stat.Bavail * uint64(stat.Bsize)
		if free < minFreeBytes {
			return Result{Name: name, Detail: fmt.Sprintf("only %d MiB free", free/(1024*1024))}
		}
	}
	return Result{Name: name, Passed: true, Detail: filepath.Clean(dir)}
}

// CheckDatabase verifies the store answers a trivial query.
func CheckDatabase(ctx context.Context, store *storage.Store) Result {
	const name = "Database"
	if _, err := store.ItemStats(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckSourceKey reports whether a source API key is configured. A missing
// key is not fatal, the source just stays idle.
func CheckSourceKey(name, apiKey string) Result {
	if apiKey == "" {
		return Result{Name: name, Detail: "api key missing; source will be skipped"}
	}
	return Result{Name: name, Passed: true, Detail: "key configured"}
}

// CheckLLM reports whether enrichment can run.
func CheckLLM(cfg *config.Config) Result {
	const name = "LLM"
	llm := cfg.GetLLM()
	if llm.APIKey == "" {
		return Result{Name: name, Detail: "api key missing; items stay unenriched"}
	}
	if llm.Model == "" {
		return Result{Name: name, Detail: "model not configured"}
	}
	return Result{Name: name, Passed: true, Detail: llm.Model}
}

// CheckWebhook reports whether digest delivery can run.
func CheckWebhook(cfg *config.Config) Result {
	const name = "Delivery webhook"
	if !cfg.Delivery.Enabled {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
	if cfg.Delivery.WebhookURL == "" {
		return Result{Name: name, Detail: "delivery enabled but webhook_url is empty"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}
