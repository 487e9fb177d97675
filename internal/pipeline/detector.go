package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/algorhythmic/marketfinder/internal/arb"
	"github.com/algorhythmic/marketfinder/internal/domain"
	"github.com/algorhythmic/marketfinder/internal/group"
	"github.com/algorhythmic/marketfinder/internal/match"
	"github.com/algorhythmic/marketfinder/internal/metrics"
	"github.com/algorhythmic/marketfinder/internal/notify"
)

// Archiver writes pass snapshots to blob storage.
type Archiver interface {
	ArchiveListings(ctx context.Context, at time.Time, listings []domain.Listing) (int64, error)
	ArchiveOpportunities(ctx context.Context, at time.Time, opps []domain.ArbitrageOpportunity) (int64, error)
}

// DetectorConfig holds tunables for a detection pass.
type DetectorConfig struct {
	// ScoreWorkers bounds the number of concurrent scoring goroutines.
	ScoreWorkers int
	// MaxCandidates caps how many candidate pairs a single pass will score.
	// Zero means unlimited.
	MaxCandidates int
	// VerdictCacheTTL is how long scored verdicts stay cached.
	VerdictCacheTTL time.Duration
	// OracleRatePerSecond throttles scorer calls when > 0. Heuristic scoring
	// needs no throttle; remote oracles do.
	OracleRatePerSecond float64
}

// Detector runs one full detection pass: ingest, pair generation, scoring,
// group maintenance, and arbitrage calculation.
type Detector struct {
	cfg       DetectorConfig
	ingestor  *Ingestor
	generator *match.Generator
	scorer    match.Scorer
	verdicts  domain.VerdictCache
	limiter   *rate.Limiter
	groups    domain.GroupStore
	opps      domain.OpportunityStore
	calc      *arb.Calculator
	notifier  *notify.Notifier
	archiver  Archiver
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDetector creates a Detector. The verdict cache, notifier, and archiver
// are optional; metrics and the stores are not.
func NewDetector(
	cfg DetectorConfig,
	ingestor *Ingestor,
	generator *match.Generator,
	scorer match.Scorer,
	verdicts domain.VerdictCache,
	groups domain.GroupStore,
	opps domain.OpportunityStore,
	calc *arb.Calculator,
	notifier *notify.Notifier,
	archiver Archiver,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Detector {
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 1
	}

	var limiter *rate.Limiter
	if cfg.OracleRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OracleRatePerSecond), 1)
	}

	return &Detector{
		cfg:       cfg,
		ingestor:  ingestor,
		generator: generator,
		scorer:    scorer,
		verdicts:  verdicts,
		limiter:   limiter,
		groups:    groups,
		opps:      opps,
		calc:      calc,
		notifier:  notifier,
		archiver:  archiver,
		metrics:   m,
		logger:    logger.With(slog.String("component", "detector")),
	}
}

// RunPass executes one detection cycle. Scoring runs on a bounded worker
// pool; group updates are applied by a single consumer so the partition
// invariant never depends on apply ordering races.
func (d *Detector) RunPass(ctx context.Context) error {
	start := time.Now()

	listings, err := d.ingestor.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for _, l := range listings {
		d.metrics.ListingsIngested.WithLabelValues(string(l.Venue)).Inc()
	}

	mgr, err := d.loadGroups(ctx)
	if err != nil {
		return err
	}

	applied, err := d.scoreAndGroup(ctx, mgr, listings)
	if err != nil {
		return err
	}

	if err := mgr.Check(); err != nil {
		return fmt.Errorf("group invariant: %w", err)
	}

	snapshot := mgr.Snapshot()
	if err := d.persistGroups(ctx, mgr, snapshot); err != nil {
		return err
	}

	produced, err := d.computeOpportunities(ctx, snapshot, listings)
	if err != nil {
		return err
	}

	active, err := d.opps.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("count active opportunities: %w", err)
	}
	d.metrics.OpportunitiesActive.Set(float64(len(active)))

	if d.archiver != nil {
		if _, err := d.archiver.ArchiveListings(ctx, start, listings); err != nil {
			d.logger.WarnContext(ctx, "listing snapshot failed", slog.String("error", err.Error()))
		}
		if _, err := d.archiver.ArchiveOpportunities(ctx, start, produced); err != nil {
			d.logger.WarnContext(ctx, "opportunity snapshot failed", slog.String("error", err.Error()))
		}
	}

	elapsed := time.Since(start)
	d.metrics.PassDuration.Observe(elapsed.Seconds())
	d.logger.InfoContext(ctx, "pass complete",
		slog.Int("listings", len(listings)),
		slog.Int("pairs_applied", applied),
		slog.Int("groups", len(snapshot)),
		slog.Int("opportunities", len(produced)),
		slog.Int("active", len(active)),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// loadGroups seeds a fresh in-memory manager from the persisted groups.
func (d *Detector) loadGroups(ctx context.Context) (*group.Manager, error) {
	persisted, err := d.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	mgr := group.NewManager(d.logger)
	if err := mgr.Seed(persisted); err != nil {
		return nil, fmt.Errorf("seed groups: %w", err)
	}
	return mgr, nil
}

type scoredPair struct {
	pair    domain.CandidatePair
	verdict domain.EquivalenceVerdict
}

// scoreAndGroup drains the candidate stream through the scoring pool and
// applies each verdict to the manager. It returns the number of verdicts
// applied.
func (d *Detector) scoreAndGroup(ctx context.Context, mgr *group.Manager, listings []domain.Listing) (int, error) {
	stream := d.generator.Pairs(listings)

	pairs := make(chan domain.CandidatePair)
	scored := make(chan scoredPair)

	g, gctx := errgroup.WithContext(ctx)

	// Producer: pull the lazy stream, honoring the per-pass cap.
	g.Go(func() error {
		defer close(pairs)
		n := 0
		for {
			if d.cfg.MaxCandidates > 0 && n >= d.cfg.MaxCandidates {
				d.logger.WarnContext(gctx, "candidate cap reached", slog.Int("cap", d.cfg.MaxCandidates))
				return nil
			}
			pair, ok := stream.Next()
			if !ok {
				return nil
			}
			n++
			d.metrics.PairsGenerated.Inc()
			select {
			case pairs <- pair:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Scoring pool.
	workers := errgroup.Group{}
	for range d.cfg.ScoreWorkers {
		workers.Go(func() error {
			for pair := range pairs {
				verdict := d.scorePair(gctx, pair)
				select {
				case scored <- scoredPair{pair: pair, verdict: verdict}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(scored)
		return workers.Wait()
	})

	// Single consumer applies verdicts in arrival order.
	applied := 0
	g.Go(func() error {
		for sp := range scored {
			outcome := "not_equivalent"
			if sp.verdict.IsEquivalent {
				outcome = "equivalent"
			}
			d.metrics.PairsScored.WithLabelValues(d.scorer.Name(), outcome).Inc()

			op := d.classifyOp(mgr, sp)
			if mgr.Apply(sp.pair.A, sp.pair.B, sp.verdict) != "" {
				d.metrics.GroupOps.WithLabelValues(op).Inc()
			}
			applied++
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return applied, fmt.Errorf("scoring: %w", err)
	}
	return applied, nil
}

// classifyOp names the manager operation an equivalent verdict will trigger.
// Called only from the single consumer goroutine, before Apply.
func (d *Detector) classifyOp(mgr *group.Manager, sp scoredPair) string {
	if !sp.verdict.IsEquivalent {
		return "noop"
	}
	gidA, okA := mgr.Find(sp.pair.A.Ref())
	gidB, okB := mgr.Find(sp.pair.B.Ref())
	switch {
	case !okA && !okB:
		return "create"
	case okA != okB:
		return "join"
	case gidA == gidB:
		return "noop"
	default:
		return "merge"
	}
}

// scorePair resolves a verdict from the cache or the scorer. Scorer failures
// never surface here; the scorer contract is to return a Degraded
// non-equivalent verdict instead of an error.
func (d *Detector) scorePair(ctx context.Context, pair domain.CandidatePair) domain.EquivalenceVerdict {
	var fp string
	if d.verdicts != nil {
		fp = match.Fingerprint(d.scorer.Name(), pair)
		if v, err := d.verdicts.Get(ctx, fp); err == nil {
			d.metrics.VerdictCacheHits.Inc()
			return v
		} else if !errors.Is(err, domain.ErrNotFound) {
			d.logger.WarnContext(ctx, "verdict cache read failed", slog.String("error", err.Error()))
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return domain.EquivalenceVerdict{Reasoning: "scoring cancelled"}
		}
	}

	verdict := d.scorer.Score(ctx, pair)
	if verdict.Degraded {
		// A scorer failure is a safe default, not a judgment. Count it and
		// leave the cache alone so the pair is rescored next pass.
		d.metrics.OracleFailures.Inc()
		return verdict
	}

	if d.verdicts != nil {
		if err := d.verdicts.Set(ctx, fp, verdict, d.cfg.VerdictCacheTTL); err != nil {
			d.logger.WarnContext(ctx, "verdict cache write failed", slog.String("error", err.Error()))
		}
	}
	return verdict
}

// persistGroups writes the post-pass group state: every surviving group is
// upserted and groups absorbed by merges are deleted.
func (d *Detector) persistGroups(ctx context.Context, mgr *group.Manager, snapshot []domain.Group) error {
	for _, g := range snapshot {
		if err := d.groups.Upsert(ctx, g); err != nil {
			return fmt.Errorf("persist group %s: %w", g.ID, err)
		}
	}
	for _, id := range mgr.DrainDeleted() {
		if err := d.groups.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete absorbed group %s: %w", id, err)
		}
	}
	return nil
}

// computeOpportunities evaluates every multi-member group against the pass's
// fresh prices and upserts the results. Newly inserted opportunities are
// announced; refreshes are not.
func (d *Detector) computeOpportunities(ctx context.Context, snapshot []domain.Group, listings []domain.Listing) ([]domain.ArbitrageOpportunity, error) {
	byRef := make(map[domain.ListingRef]domain.Listing, len(listings))
	for _, l := range listings {
		byRef[l.Ref()] = l
	}

	var produced []domain.ArbitrageOpportunity
	for _, g := range snapshot {
		if len(g.Memberships) < 2 {
			continue
		}

		members := make([]domain.Listing, 0, len(g.Memberships))
		for _, m := range g.Memberships {
			if l, ok := byRef[m.Listing]; ok {
				members = append(members, l)
			}
		}
		if len(members) < 2 {
			continue
		}

		for _, opp := range d.calc.Opportunities(g, members) {
			inserted, err := d.opps.Upsert(ctx, opp)
			if err != nil {
				return produced, fmt.Errorf("upsert opportunity: %w", err)
			}
			d.metrics.OpportunitiesFound.WithLabelValues(string(opp.Kind), fmt.Sprintf("%t", inserted)).Inc()
			produced = append(produced, opp)

			if inserted && d.notifier != nil {
				title, msg := notify.FormatOpportunity(opp)
				if err := d.notifier.Notify(ctx, notify.EventOpportunityDetected, title, msg); err != nil {
					d.logger.WarnContext(ctx, "opportunity alert failed", slog.String("error", err.Error()))
				}
			}
		}
	}
	return produced, nil
}
