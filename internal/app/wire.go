package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	s3blob "github.com/algorhythmic/marketfinder/internal/blob/s3"
	"github.com/algorhythmic/marketfinder/internal/cache/redis"
	"github.com/algorhythmic/marketfinder/internal/config"
	"github.com/algorhythmic/marketfinder/internal/domain"
	"github.com/algorhythmic/marketfinder/internal/metrics"
	"github.com/algorhythmic/marketfinder/internal/notify"
	"github.com/algorhythmic/marketfinder/internal/store/postgres"
)

// Dependencies bundles the infrastructure dependencies of the detection
// pipeline. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	ListingStore     domain.ListingStore
	GroupStore       domain.GroupStore
	OpportunityStore domain.OpportunityStore

	// Caches
	ListingCache domain.ListingCache
	VerdictCache domain.VerdictCache
	LockManager  domain.LockManager

	// Blob storage (nil unless S3 is enabled)
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// Metrics
	Metrics *metrics.Metrics

	// Health checks connectivity of the critical backends.
	Health func(ctx context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.ListingStore = postgres.NewListingStore(pool)
	deps.GroupStore = postgres.NewGroupStore(pool)
	deps.OpportunityStore = postgres.NewOpportunityStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ListingCache = redis.NewListingCache(redisClient)
	deps.VerdictCache = redis.NewVerdictCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 pass archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Metrics ---
	deps.Metrics = metrics.New(prometheus.DefaultRegisterer)

	deps.Health = func(ctx context.Context) error {
		if err := pgClient.Pool().Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return redisClient.Ping(ctx)
	}

	return deps, cleanup, nil
}

// loadKalshiKey reads the RSA private key used for Kalshi request signing.
// An empty path means unauthenticated access, which is valid for market data.
func loadKalshiKey(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: read kalshi key: %w", err)
	}
	return data, nil
}
