package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETFINDER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETFINDER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Polymarket.GammaHost, "MARKETFINDER_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.PageSize, "MARKETFINDER_POLYMARKET_PAGE_SIZE")
	setInt(&cfg.Polymarket.MaxPages, "MARKETFINDER_POLYMARKET_MAX_PAGES")

	setStr(&cfg.Kalshi.BaseURL, "MARKETFINDER_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "MARKETFINDER_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "MARKETFINDER_KALSHI_RSA_PRIVATE_KEY_PATH")
	setInt(&cfg.Kalshi.PageSize, "MARKETFINDER_KALSHI_PAGE_SIZE")
	setInt(&cfg.Kalshi.MaxPages, "MARKETFINDER_KALSHI_MAX_PAGES")

	setStr(&cfg.Postgres.DSN, "MARKETFINDER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETFINDER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETFINDER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETFINDER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETFINDER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETFINDER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETFINDER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARKETFINDER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARKETFINDER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARKETFINDER_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "MARKETFINDER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETFINDER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETFINDER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETFINDER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETFINDER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETFINDER_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "MARKETFINDER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETFINDER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETFINDER_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETFINDER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARKETFINDER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETFINDER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "MARKETFINDER_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Matching.Scorer, "MARKETFINDER_MATCHING_SCORER")
	setFloat64(&cfg.Matching.PriceGapThreshold, "MARKETFINDER_MATCHING_PRICE_GAP_THRESHOLD")
	setStringSlice(&cfg.Matching.ExtraKeywords, "MARKETFINDER_MATCHING_EXTRA_KEYWORDS")
	setDuration(&cfg.Matching.VerdictCacheTTL, "MARKETFINDER_MATCHING_VERDICT_CACHE_TTL")

	setStr(&cfg.Oracle.Endpoint, "MARKETFINDER_ORACLE_ENDPOINT")
	setStr(&cfg.Oracle.ApiKey, "MARKETFINDER_ORACLE_API_KEY")
	setStr(&cfg.Oracle.Model, "MARKETFINDER_ORACLE_MODEL")
	setDuration(&cfg.Oracle.RequestTimeout, "MARKETFINDER_ORACLE_REQUEST_TIMEOUT")
	setFloat64(&cfg.Oracle.RatePerSecond, "MARKETFINDER_ORACLE_RATE_PER_SECOND")

	setFloat64(&cfg.Arbitrage.MinSameSideMargin, "MARKETFINDER_ARBITRAGE_MIN_SAME_SIDE_MARGIN")
	setFloat64(&cfg.Arbitrage.MinComplementaryMargin, "MARKETFINDER_ARBITRAGE_MIN_COMPLEMENTARY_MARGIN")
	setFloat64(&cfg.Arbitrage.MinVolume, "MARKETFINDER_ARBITRAGE_MIN_VOLUME")
	setDuration(&cfg.Arbitrage.ExpiryWindow, "MARKETFINDER_ARBITRAGE_EXPIRY_WINDOW")

	setDuration(&cfg.Pipeline.Interval, "MARKETFINDER_PIPELINE_INTERVAL")
	setDuration(&cfg.Pipeline.SweepInterval, "MARKETFINDER_PIPELINE_SWEEP_INTERVAL")
	setInt(&cfg.Pipeline.ScoreWorkers, "MARKETFINDER_PIPELINE_SCORE_WORKERS")
	setInt(&cfg.Pipeline.MaxCandidates, "MARKETFINDER_PIPELINE_MAX_CANDIDATES")
	setDuration(&cfg.Pipeline.LockTTL, "MARKETFINDER_PIPELINE_LOCK_TTL")

	setBool(&cfg.Metrics.Enabled, "MARKETFINDER_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "MARKETFINDER_METRICS_PORT")

	setStr(&cfg.Notify.TelegramToken, "MARKETFINDER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETFINDER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETFINDER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETFINDER_NOTIFY_EVENTS")

	setStr(&cfg.LogLevel, "MARKETFINDER_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
