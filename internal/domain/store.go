package domain

import (
	"context"
	"time"
)

// ListingStore persists normalized listing snapshots.
type ListingStore interface {
	UpsertBatch(ctx context.Context, listings []Listing) error
	GetByRef(ctx context.Context, ref ListingRef) (Listing, error)
	ListActive(ctx context.Context) ([]Listing, error)
	Count(ctx context.Context) (int64, error)
}

// GroupStore persists equivalence groups and their memberships.
type GroupStore interface {
	Upsert(ctx context.Context, g Group) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Group, error)
	List(ctx context.Context) ([]Group, error)
}

// OpportunityStore persists arbitrage opportunities with upsert-by-key
// semantics. Upsert refreshes the matching active record (pushing its expiry
// forward) or inserts a new one; it never deletes, so history stays auditable.
// Inserted reports whether a new row was created rather than refreshed.
type OpportunityStore interface {
	Upsert(ctx context.Context, opp ArbitrageOpportunity) (inserted bool, err error)
	ListActive(ctx context.Context) ([]ArbitrageOpportunity, error)
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// ListingCache caches the current pass's normalized listings.
type ListingCache interface {
	SetBatch(ctx context.Context, listings []Listing, ttl time.Duration) error
	Get(ctx context.Context, ref ListingRef) (Listing, error)
}

// VerdictCache caches equivalence verdicts by pair fingerprint so unchanged
// pairs are not re-scored (matters when the oracle scorer is active).
type VerdictCache interface {
	Get(ctx context.Context, fingerprint string) (EquivalenceVerdict, error)
	Set(ctx context.Context, fingerprint string, v EquivalenceVerdict, ttl time.Duration) error
}

// LockManager provides distributed mutual exclusion so only one batch pass
// runs at a time across replicas.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld if another holder
	// owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter writes an object to blob storage under the given key.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}
