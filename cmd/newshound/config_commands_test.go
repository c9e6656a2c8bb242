package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("init output = %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := runCommand(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCommand(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `[paths]
data_dir = "` + filepath.Join(base, "data") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[twitter]
api_key = "super-secret-twitter-key"

[delivery]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := runCommand(t, path, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.Contains(output, "super-secret-twitter-key") {
		t.Fatalf("api key must be masked:\n%s", output)
	}
	if !strings.Contains(output, "supe") {
		t.Fatalf("masked key should keep a short prefix:\n%s", output)
	}
}

func TestSettingSetListUnset(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, configPath, "setting", "set", "filter.min_quality_score", "0.7"); err != nil {
		t.Fatalf("set: %v", err)
	}

	output, err := runCommand(t, configPath, "setting", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(output, "0.7") {
		t.Fatalf("override missing from list:\n%s", output)
	}

	if _, err := runCommand(t, configPath, "setting", "set", "filter.min_quality_score", "7"); err == nil {
		t.Fatal("out-of-range quality score must be rejected")
	}

	if _, err := runCommand(t, configPath, "setting", "unset", "filter.min_quality_score"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	output, err = runCommand(t, configPath, "setting", "list")
	if err != nil {
		t.Fatalf("list after unset: %v", err)
	}
	if strings.Contains(output, "0.7") {
		t.Fatalf("override must be gone after unset:\n%s", output)
	}
}
