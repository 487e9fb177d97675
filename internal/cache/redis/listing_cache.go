package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// ListingCache implements domain.ListingCache using JSON-serialized listings
// keyed by their venue-qualified ref.
//
// Key schema:
//
//	listing:{venue}:{id} - JSON-encoded Listing
type ListingCache struct {
	rdb *redis.Client
}

// NewListingCache creates a ListingCache backed by the given Client.
func NewListingCache(c *Client) *ListingCache {
	return &ListingCache{rdb: c.rdb}
}

func listingKey(ref domain.ListingRef) string { return "listing:" + string(ref) }

// SetBatch stores a batch of listings with the given TTL in a single pipeline
// round trip.
func (lc *ListingCache) SetBatch(ctx context.Context, listings []domain.Listing, ttl time.Duration) error {
	if len(listings) == 0 {
		return nil
	}

	pipe := lc.rdb.TxPipeline()
	for _, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("redis: marshal listing %s: %w", l.Ref(), err)
		}
		pipe.Set(ctx, listingKey(l.Ref()), data, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set listing batch: %w", err)
	}
	return nil
}

// Get retrieves a listing by its ref.
// It returns domain.ErrNotFound when the key does not exist.
func (lc *ListingCache) Get(ctx context.Context, ref domain.ListingRef) (domain.Listing, error) {
	data, err := lc.rdb.Get(ctx, listingKey(ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("redis: get listing %s: %w", ref, err)
	}

	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("redis: unmarshal listing %s: %w", ref, err)
	}
	return l, nil
}

// Compile-time interface check.
var _ domain.ListingCache = (*ListingCache)(nil)
