package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OffloadThresholdChars != 6000 {
		t.Errorf("OffloadThresholdChars = %d, want 6000", cfg.OffloadThresholdChars)
	}
	if cfg.MaxSliceLines != 2000 {
		t.Errorf("MaxSliceLines = %d, want 2000", cfg.MaxSliceLines)
	}
	if cfg.HardTokenLimit != 40000 {
		t.Errorf("HardTokenLimit = %d, want 40000", cfg.HardTokenLimit)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".iris")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	data := []byte(`{"summary_head_chars": 400, "turn_summary_window": 6}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SummaryHeadChars != 400 {
		t.Errorf("SummaryHeadChars = %d, want 400", cfg.SummaryHeadChars)
	}
	if cfg.TurnSummaryWindow != 6 {
		t.Errorf("TurnSummaryWindow = %d, want 6", cfg.TurnSummaryWindow)
	}
	// Omitted fields keep defaults.
	if cfg.OffloadThresholdChars != 6000 {
		t.Errorf("OffloadThresholdChars = %d, want 6000", cfg.OffloadThresholdChars)
	}
}

func TestLoad_ZeroDBConnsKeepsSingleWriter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".iris")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	// An explicit zero must not lift the single-writer pool cap.
	data := []byte(`{"db_max_open_conns": 0}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBMaxOpenConns != 1 {
		t.Errorf("DBMaxOpenConns = %d, want 1", cfg.DBMaxOpenConns)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".iris")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(root); err == nil {
		t.Error("Load should fail on malformed JSON")
	}
}
