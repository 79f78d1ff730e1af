package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds runtime tunables for one sandbox. All values have working
// defaults; a sandbox may override them via <root>/.iris/config.json.
type Config struct {
	// OffloadThresholdChars is the inline content ceiling. Any message
	// longer than this is offloaded to the memory store on ingress.
	OffloadThresholdChars int `json:"offload_threshold_chars"`

	// SummaryHeadChars is how much of an offloaded payload is kept inline
	// as the human-readable summary (before the pointer marker).
	SummaryHeadChars int `json:"summary_head_chars"`

	// MaxSliceLines caps a single line-range fetch from the memory store.
	MaxSliceLines int `json:"max_slice_lines"`

	// MaxSliceBytes caps a single byte-range fetch from the memory store.
	MaxSliceBytes int `json:"max_slice_bytes"`

	// CompressionLevel is the zstd level for CAS blobs.
	CompressionLevel int `json:"compression_level"`

	// SoftTokenLimit is the governor tier-1 threshold: above it, a notice
	// is injected steering the model toward small memory_fetch ranges.
	SoftTokenLimit int `json:"soft_token_limit"`

	// HardTokenLimit is the governor tier-2 threshold: above it, the
	// prompt is recompressed in pointer-only mode.
	HardTokenLimit int `json:"hard_token_limit"`

	// ReducedTokenBudget is the recompression budget applied when the
	// hard limit trips.
	ReducedTokenBudget int `json:"reduced_token_budget"`

	// TurnSummaryWindow is how many recent turn summaries the context
	// builder includes in each prompt.
	TurnSummaryWindow int `json:"turn_summary_window"`

	// ArtifactWindow is how many recent key artifacts the context builder
	// lists as pointers in the state block.
	ArtifactWindow int `json:"artifact_window"`

	// TruncatedHeadChars is the hard-truncation length the compressor
	// applies to over-budget inline messages.
	TruncatedHeadChars int `json:"truncated_head_chars"`

	// LLMTimeoutMS bounds each provider call. 0 means no timeout.
	LLMTimeoutMS int64 `json:"llm_timeout_ms"`

	// DBMaxOpenConns limits the memory index connection pool. The index
	// is single-writer; 1 serializes all access.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OffloadThresholdChars: 6000,
		SummaryHeadChars:      800,
		MaxSliceLines:         2000,
		MaxSliceBytes:         65536,
		CompressionLevel:      6,
		SoftTokenLimit:        20000,
		HardTokenLimit:        40000,
		ReducedTokenBudget:    30000,
		TurnSummaryWindow:     12,
		ArtifactWindow:        10,
		TruncatedHeadChars:    400,
		LLMTimeoutMS:          120000,
		DBMaxOpenConns:        1,
	}
}

// Load reads configuration from root/.iris/config.json. Missing file
// returns the defaults; malformed JSON is an error.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, ".iris", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize backfills zero values with defaults so a sparse config file
// cannot disable a limit by omission.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.OffloadThresholdChars <= 0 {
		c.OffloadThresholdChars = d.OffloadThresholdChars
	}
	if c.SummaryHeadChars <= 0 {
		c.SummaryHeadChars = d.SummaryHeadChars
	}
	if c.MaxSliceLines <= 0 {
		c.MaxSliceLines = d.MaxSliceLines
	}
	if c.MaxSliceBytes <= 0 {
		c.MaxSliceBytes = d.MaxSliceBytes
	}
	if c.CompressionLevel <= 0 {
		c.CompressionLevel = d.CompressionLevel
	}
	if c.SoftTokenLimit <= 0 {
		c.SoftTokenLimit = d.SoftTokenLimit
	}
	if c.HardTokenLimit <= 0 {
		c.HardTokenLimit = d.HardTokenLimit
	}
	if c.ReducedTokenBudget <= 0 {
		c.ReducedTokenBudget = d.ReducedTokenBudget
	}
	if c.TurnSummaryWindow <= 0 {
		c.TurnSummaryWindow = d.TurnSummaryWindow
	}
	if c.ArtifactWindow <= 0 {
		c.ArtifactWindow = d.ArtifactWindow
	}
	if c.TruncatedHeadChars <= 0 {
		c.TruncatedHeadChars = d.TruncatedHeadChars
	}
	if c.DBMaxOpenConns <= 0 {
		c.DBMaxOpenConns = d.DBMaxOpenConns
	}
}
