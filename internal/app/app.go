// Package app provides top-level lifecycle management for marketfinder. It
// wires stores, caches, blob storage, venue clients, and the detection
// pipeline, and runs everything until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/algorhythmic/marketfinder/internal/arb"
	s3blob "github.com/algorhythmic/marketfinder/internal/blob/s3"
	"github.com/algorhythmic/marketfinder/internal/config"
	"github.com/algorhythmic/marketfinder/internal/domain"
	"github.com/algorhythmic/marketfinder/internal/match"
	"github.com/algorhythmic/marketfinder/internal/metrics"
	"github.com/algorhythmic/marketfinder/internal/pipeline"
	"github.com/algorhythmic/marketfinder/internal/venue/kalshi"
	"github.com/algorhythmic/marketfinder/internal/venue/polymarket"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and blocks in the pipeline loop until the
// context is cancelled. When once is true it runs a single detection pass
// and returns, which is useful for cron-style deployments and smoke tests.
func (a *App) Run(ctx context.Context, once bool) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	detector, err := a.buildDetector(deps)
	if err != nil {
		return err
	}

	if a.cfg.Metrics.Enabled {
		srv := metrics.StartServer(a.cfg.Metrics.Port, deps.Health)
		a.closers = append(a.closers, func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		})
		a.logger.Info("metrics server started", slog.Int("port", a.cfg.Metrics.Port))
	}

	if once {
		return detector.RunPass(ctx)
	}

	runner := pipeline.NewRunner(
		pipeline.RunnerConfig{
			Interval:      a.cfg.Pipeline.Interval.Duration,
			SweepInterval: a.cfg.Pipeline.SweepInterval.Duration,
			LockTTL:       a.cfg.Pipeline.LockTTL.Duration,
		},
		detector,
		deps.OpportunityStore,
		deps.LockManager,
		deps.Notifier,
		deps.Metrics,
		a.logger,
	)
	return runner.Run(ctx)
}

// buildDetector assembles the venue clients, scorer, and calculator into a
// ready Detector.
func (a *App) buildDetector(deps *Dependencies) (*pipeline.Detector, error) {
	poly := polymarket.NewClient(polymarket.ClientConfig{
		GammaHost: a.cfg.Polymarket.GammaHost,
		PageSize:  a.cfg.Polymarket.PageSize,
		MaxPages:  a.cfg.Polymarket.MaxPages,
		Logger:    a.logger,
	})

	kal := kalshi.NewClient(kalshi.ClientConfig{
		BaseURL:  a.cfg.Kalshi.BaseURL,
		ApiKeyID: a.cfg.Kalshi.ApiKey,
		PageSize: a.cfg.Kalshi.PageSize,
		MaxPages: a.cfg.Kalshi.MaxPages,
		Logger:   a.logger,
	})
	if key, err := loadKalshiKey(a.cfg.Kalshi.RsaPrivateKeyPath); err != nil {
		return nil, err
	} else if key != nil {
		if err := kal.SetRSAPrivateKey(key); err != nil {
			return nil, fmt.Errorf("app: kalshi key: %w", err)
		}
	}

	sources := []pipeline.Source{
		{Venue: domain.VenuePolymarket, Lister: poly},
		{Venue: domain.VenueKalshi, Lister: kal},
	}

	ingestor := pipeline.NewIngestor(
		sources,
		deps.ListingStore,
		deps.ListingCache,
		a.cfg.Pipeline.Interval.Duration*2,
		a.logger,
	)

	generator := match.NewGenerator(match.GeneratorConfig{
		PriceGapThreshold: a.cfg.Matching.PriceGapThreshold,
		ExtraKeywords:     a.cfg.Matching.ExtraKeywords,
	})

	var (
		scorer     match.Scorer
		oracleRate float64
	)
	switch strings.ToLower(a.cfg.Matching.Scorer) {
	case "oracle":
		scorer = match.NewOracleScorer(match.OracleScorerConfig{
			Endpoint: a.cfg.Oracle.Endpoint,
			ApiKey:   a.cfg.Oracle.ApiKey,
			Model:    a.cfg.Oracle.Model,
			Timeout:  a.cfg.Oracle.RequestTimeout.Duration,
			Logger:   a.logger,
		})
		oracleRate = a.cfg.Oracle.RatePerSecond
	default:
		scorer = match.NewHeuristicScorer()
	}

	calc := arb.NewCalculator(arb.CalculatorConfig{
		MinSameSideMargin:      a.cfg.Arbitrage.MinSameSideMargin,
		MinComplementaryMargin: a.cfg.Arbitrage.MinComplementaryMargin,
		MinVolume:              a.cfg.Arbitrage.MinVolume,
		ExpiryWindow:           a.cfg.Arbitrage.ExpiryWindow.Duration,
	}, a.logger)

	var archiver pipeline.Archiver
	if deps.BlobWriter != nil {
		archiver = s3blob.NewPassArchiver(deps.BlobWriter)
	}

	return pipeline.NewDetector(
		pipeline.DetectorConfig{
			ScoreWorkers:        a.cfg.Pipeline.ScoreWorkers,
			MaxCandidates:       a.cfg.Pipeline.MaxCandidates,
			VerdictCacheTTL:     a.cfg.Matching.VerdictCacheTTL.Duration,
			OracleRatePerSecond: oracleRate,
		},
		ingestor,
		generator,
		scorer,
		deps.VerdictCache,
		deps.GroupStore,
		deps.OpportunityStore,
		calc,
		deps.Notifier,
		archiver,
		deps.Metrics,
		a.logger,
	), nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
