package preflight

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"newshound/internal/testsupport"
)

func TestCheckDataDir(t *testing.T) {
	result := CheckDataDir(filepath.Join(t.TempDir(), "data"))
	if !result.Passed {
		t.Fatalf("writable temp dir must pass: %+v", result)
	}

	if result := CheckDataDir(""); result.Passed {
		t.Fatal("empty dir must fail")
	}
}

func TestCheckSourceKey(t *testing.T) {
	if result := CheckSourceKey("Twitter API", ""); result.Passed {
		t.Fatal("missing key must not pass")
	}
	result := CheckSourceKey("Twitter API", "k")
	if !result.Passed {
		t.Fatalf("configured key must pass: %+v", result)
	}
}

func TestRunCoversAllChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Twitter.APIKey = "tk"
	cfg.LLM.APIKey = "lk"
	cfg.LLM.Model = "test-model"
	store := testsupport.MustOpenStore(t, cfg)

	results := Run(context.Background(), cfg, store)
	if len(results) != 6 {
		t.Fatalf("results = %d, want 6", len(results))
	}

	byName := make(map[string]Result, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	if !byName["Database"].Passed {
		t.Fatalf("database check failed: %+v", byName["Database"])
	}
	if !byName["Twitter API"].Passed || byName["YouTube API"].Passed {
		t.Fatalf("key checks wrong: %+v / %+v", byName["Twitter API"], byName["YouTube API"])
	}
	if !byName["LLM"].Passed || !strings.Contains(byName["LLM"].Detail, "test-model") {
		t.Fatalf("llm check wrong: %+v", byName["LLM"])
	}
	if !byName["Delivery webhook"].Passed {
		t.Fatalf("disabled delivery must pass: %+v", byName["Delivery webhook"])
	}
}
