// Package pipeline orchestrates the detection cycle: ingest listings from
// every venue, generate and score candidate pairs, maintain equivalence
// groups, and compute arbitrage opportunities.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// Lister retrieves the currently active listings from one venue.
type Lister interface {
	ListActive(ctx context.Context) ([]domain.Listing, error)
}

// Source binds a venue identity to its listing client.
type Source struct {
	Venue  domain.Venue
	Lister Lister
}

// Ingestor fetches listings from all venues concurrently and persists the
// combined batch to the store and cache.
type Ingestor struct {
	sources  []Source
	store    domain.ListingStore
	cache    domain.ListingCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewIngestor creates a new Ingestor. The cache may be nil, in which case
// listings are only persisted to the store.
func NewIngestor(sources []Source, store domain.ListingStore, cache domain.ListingCache, cacheTTL time.Duration, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		sources:  sources,
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("component", "ingestor")),
	}
}

// Run fetches all venues in parallel, then persists the combined batch. A
// failure at any venue aborts the run; a partial universe would make the
// cross-venue comparison one-sided.
func (in *Ingestor) Run(ctx context.Context) ([]domain.Listing, error) {
	results := make([][]domain.Listing, len(in.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range in.sources {
		g.Go(func() error {
			listings, err := src.Lister.ListActive(gctx)
			if err != nil {
				return fmt.Errorf("fetch %s listings: %w", src.Venue, err)
			}
			in.logger.InfoContext(gctx, "venue fetched",
				slog.String("venue", string(src.Venue)),
				slog.Int("listings", len(listings)),
			)
			results[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Listing
	for _, batch := range results {
		all = append(all, batch...)
	}

	if err := in.store.UpsertBatch(ctx, all); err != nil {
		return nil, fmt.Errorf("persist listings: %w", err)
	}

	if in.cache != nil {
		if err := in.cache.SetBatch(ctx, all, in.cacheTTL); err != nil {
			// The cache is an accelerator, not the source of truth.
			in.logger.WarnContext(ctx, "listing cache write failed", slog.String("error", err.Error()))
		}
	}

	return all, nil
}
