package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults() does not validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"bad scorer", func(c *Config) { c.Matching.Scorer = "vibes" }, "scorer"},
		{"gap out of range", func(c *Config) { c.Matching.PriceGapThreshold = 1.5 }, "price_gap_threshold"},
		{"oracle without endpoint", func(c *Config) { c.Matching.Scorer = "oracle" }, "oracle"},
		{"negative margin", func(c *Config) { c.Arbitrage.MinSameSideMargin = -0.01 }, "min_same_side_margin"},
		{"zero interval", func(c *Config) { c.Pipeline.Interval = duration{} }, "interval"},
		{"zero sweep interval", func(c *Config) { c.Pipeline.SweepInterval = duration{} }, "sweep_interval"},
		{"zero lock ttl", func(c *Config) { c.Pipeline.LockTTL = duration{} }, "lock_ttl"},
		{"no workers", func(c *Config) { c.Pipeline.ScoreWorkers = 0 }, "score_workers"},
		{"s3 enabled without bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[matching]
scorer = "heuristic"
price_gap_threshold = 0.15
extra_keywords = ["eurovision", "f1"]
verdict_cache_ttl = "2h"

[pipeline]
interval = "10m"
score_workers = 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Matching.PriceGapThreshold != 0.15 {
		t.Errorf("PriceGapThreshold = %v", cfg.Matching.PriceGapThreshold)
	}
	if len(cfg.Matching.ExtraKeywords) != 2 {
		t.Errorf("ExtraKeywords = %v", cfg.Matching.ExtraKeywords)
	}
	if cfg.Matching.VerdictCacheTTL.Duration != 2*time.Hour {
		t.Errorf("VerdictCacheTTL = %v", cfg.Matching.VerdictCacheTTL.Duration)
	}
	if cfg.Pipeline.Interval.Duration != 10*time.Minute {
		t.Errorf("Interval = %v", cfg.Pipeline.Interval.Duration)
	}

	// Untouched sections keep their defaults.
	if cfg.Polymarket.GammaHost == "" || cfg.Redis.Addr == "" {
		t.Error("defaults lost for sections absent from the file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETFINDER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MARKETFINDER_ARBITRAGE_MIN_VOLUME", "2500")
	t.Setenv("MARKETFINDER_PIPELINE_INTERVAL", "90s")
	t.Setenv("MARKETFINDER_MATCHING_EXTRA_KEYWORDS", "eurovision, f1 ,")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Arbitrage.MinVolume != 2500 {
		t.Errorf("MinVolume = %v", cfg.Arbitrage.MinVolume)
	}
	if cfg.Pipeline.Interval.Duration != 90*time.Second {
		t.Errorf("Interval = %v", cfg.Pipeline.Interval.Duration)
	}
	if len(cfg.Matching.ExtraKeywords) != 2 || cfg.Matching.ExtraKeywords[1] != "f1" {
		t.Errorf("ExtraKeywords = %v", cfg.Matching.ExtraKeywords)
	}
}
