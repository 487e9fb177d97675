package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algorhythmic/marketfinder/internal/domain"
	"github.com/algorhythmic/marketfinder/internal/metrics"
	"github.com/algorhythmic/marketfinder/internal/notify"
)

// passLockKey guards the detection pass across replicas.
const passLockKey = "pipeline:pass"

// RunnerConfig holds the scheduling parameters for the pipeline loops.
type RunnerConfig struct {
	Interval      time.Duration
	SweepInterval time.Duration
	LockTTL       time.Duration
}

// Runner drives the Detector on a fixed interval and runs the opportunity
// expiry sweeper alongside it. A distributed lock keeps concurrent replicas
// from running overlapping passes.
type Runner struct {
	cfg      RunnerConfig
	detector *Detector
	opps     domain.OpportunityStore
	locks    domain.LockManager
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner. The lock manager may be nil for single-replica
// deployments; the notifier may be nil to disable failure alerts.
func NewRunner(
	cfg RunnerConfig,
	detector *Detector,
	opps domain.OpportunityStore,
	locks domain.LockManager,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		cfg:      cfg,
		detector: detector,
		opps:     opps,
		locks:    locks,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Run starts the pass loop and the expiry sweeper and blocks until the
// context is cancelled. Pass failures are logged and alerted but do not stop
// the loops; the next tick retries from persisted state.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "pipeline starting",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("sweep_interval", r.cfg.SweepInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.passLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("pass loop: %w", err)
	})

	g.Go(func() error {
		err := r.sweepLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("sweep loop: %w", err)
	})

	if err := g.Wait(); err != nil {
		r.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}

	r.logger.Info("pipeline stopped cleanly")
	return nil
}

func (r *Runner) passLoop(ctx context.Context) error {
	// Run immediately on start.
	r.runOnce(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce executes a single locked pass. Failures are contained here so the
// loop keeps ticking.
func (r *Runner) runOnce(ctx context.Context) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, passLockKey, r.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.InfoContext(ctx, "pass skipped, lock held by another replica")
				return
			}
			r.logger.ErrorContext(ctx, "pass lock acquisition failed", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	if err := r.detector.RunPass(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.metrics.PassFailures.Inc()
		r.logger.ErrorContext(ctx, "pass failed", slog.String("error", err.Error()))

		if r.notifier != nil {
			if nerr := r.notifier.Notify(ctx, notify.EventPassFailed, "Detection pass failed", err.Error()); nerr != nil {
				r.logger.WarnContext(ctx, "failure alert failed", slog.String("error", nerr.Error()))
			}
		}
	}
}

func (r *Runner) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired, err := r.opps.ExpireStale(ctx, time.Now().UTC())
			if err != nil {
				r.logger.ErrorContext(ctx, "expiry sweep failed", slog.String("error", err.Error()))
				continue
			}
			if expired > 0 {
				r.logger.InfoContext(ctx, "opportunities expired", slog.Int64("count", expired))
			}
		}
	}
}
