// Package config defines the top-level configuration for marketfinder and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so it can be decoded from TOML strings like "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETFINDER_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Matching   MatchingConfig   `toml:"matching"`
	Oracle     OracleConfig     `toml:"oracle"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket Gamma API parameters.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
}

// KalshiConfig holds Kalshi exchange API parameters.
type KalshiConfig struct {
	BaseURL           string `toml:"base_url"`
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	PageSize          int    `toml:"page_size"`
	MaxPages          int    `toml:"max_pages"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for pass archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MatchingConfig holds candidate generation and equivalence scoring parameters.
type MatchingConfig struct {
	// Scorer selects the equivalence scorer: "heuristic" or "oracle".
	Scorer string `toml:"scorer"`
	// PriceGapThreshold admits a cross-venue pair as a candidate when the
	// absolute yes-price difference exceeds it.
	PriceGapThreshold float64 `toml:"price_gap_threshold"`
	// ExtraKeywords is appended to the built-in high-signal vocabulary.
	ExtraKeywords []string `toml:"extra_keywords"`
	// VerdictCacheTTL bounds how long scored verdicts are reused across passes.
	VerdictCacheTTL duration `toml:"verdict_cache_ttl"`
}

// OracleConfig holds parameters for the remote reasoning scorer.
type OracleConfig struct {
	Endpoint       string   `toml:"endpoint"`
	ApiKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	RequestTimeout duration `toml:"request_timeout"`
	// RatePerSecond caps oracle calls across the whole pass.
	RatePerSecond float64 `toml:"rate_per_second"`
}

// ArbitrageConfig holds opportunity derivation parameters.
type ArbitrageConfig struct {
	// MinSameSideMargin is the minimum relative margin (sell-buy)/buy.
	MinSameSideMargin float64 `toml:"min_same_side_margin"`
	// MinComplementaryMargin is the minimum 1-(yes+no) margin.
	MinComplementaryMargin float64 `toml:"min_complementary_margin"`
	// MinVolume is the liquidity floor; listings below it are skipped.
	MinVolume float64 `toml:"min_volume"`
	// ExpiryWindow is how long an unrefreshed opportunity stays active.
	ExpiryWindow duration `toml:"expiry_window"`
}

// PipelineConfig holds batch pass scheduling and concurrency parameters.
type PipelineConfig struct {
	Interval      duration `toml:"interval"`
	SweepInterval duration `toml:"sweep_interval"`
	ScoreWorkers  int      `toml:"score_workers"`
	// MaxCandidates bounds the pairs scored per pass; 0 means unbounded.
	MaxCandidates int `toml:"max_candidates"`
	// LockTTL bounds how long the cross-replica pass lock is held.
	LockTTL duration `toml:"lock_ttl"`
}

// MetricsConfig holds the Prometheus metrics endpoint parameters.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validScorers = map[string]bool{
	"heuristic": true, "oracle": true,
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			PageSize:  200,
			MaxPages:  25,
		},
		Kalshi: KalshiConfig{
			BaseURL:  "https://api.elections.kalshi.com/trade-api/v2",
			PageSize: 200,
			MaxPages: 25,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketfinder",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketfinder-data",
			ForcePathStyle: true,
		},
		Matching: MatchingConfig{
			Scorer:            "heuristic",
			PriceGapThreshold: 0.10,
			VerdictCacheTTL:   duration{6 * time.Hour},
		},
		Oracle: OracleConfig{
			Model:          "gpt-4o-mini",
			RequestTimeout: duration{8 * time.Second},
			RatePerSecond:  5,
		},
		Arbitrage: ArbitrageConfig{
			MinSameSideMargin:      0.02,
			MinComplementaryMargin: 0.02,
			MinVolume:              1000,
			ExpiryWindow:           duration{30 * time.Minute},
		},
		Pipeline: PipelineConfig{
			Interval:      duration{5 * time.Minute},
			SweepInterval: duration{time.Minute},
			ScoreWorkers:  8,
			MaxCandidates: 0,
			LockTTL:       duration{10 * time.Minute},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies. It returns a single
// error aggregating every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when s3 is enabled")
		}
	}

	if !validScorers[strings.ToLower(c.Matching.Scorer)] {
		errs = append(errs, fmt.Sprintf("matching: unknown scorer %q (valid: heuristic, oracle)", c.Matching.Scorer))
	}
	if c.Matching.PriceGapThreshold < 0 || c.Matching.PriceGapThreshold > 1 {
		errs = append(errs, fmt.Sprintf("matching: price_gap_threshold must be in [0,1], got %g", c.Matching.PriceGapThreshold))
	}

	if strings.ToLower(c.Matching.Scorer) == "oracle" {
		if c.Oracle.Endpoint == "" {
			errs = append(errs, "oracle: endpoint is required when matching.scorer is oracle")
		}
		if c.Oracle.ApiKey == "" {
			errs = append(errs, "oracle: api_key is required when matching.scorer is oracle")
		}
		if c.Oracle.RequestTimeout.Duration <= 0 {
			errs = append(errs, "oracle: request_timeout must be positive")
		}
	}

	if c.Arbitrage.MinSameSideMargin < 0 {
		errs = append(errs, "arbitrage: min_same_side_margin must not be negative")
	}
	if c.Arbitrage.MinComplementaryMargin < 0 {
		errs = append(errs, "arbitrage: min_complementary_margin must not be negative")
	}
	if c.Arbitrage.ExpiryWindow.Duration <= 0 {
		errs = append(errs, "arbitrage: expiry_window must be positive")
	}

	if c.Pipeline.Interval.Duration <= 0 {
		errs = append(errs, "pipeline: interval must be positive")
	}
	if c.Pipeline.SweepInterval.Duration <= 0 {
		errs = append(errs, "pipeline: sweep_interval must be positive")
	}
	if c.Pipeline.LockTTL.Duration <= 0 {
		errs = append(errs, "pipeline: lock_ttl must be positive")
	}
	if c.Pipeline.ScoreWorkers < 1 {
		errs = append(errs, "pipeline: score_workers must be >= 1")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics: port must be 1-65535, got %d", c.Metrics.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
