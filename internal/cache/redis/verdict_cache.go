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

// VerdictCache implements domain.VerdictCache. Verdicts are keyed by the pair
// fingerprint, which already encodes the scorer name and both listing titles,
// so a title change or a scorer swap naturally misses the cache.
//
// Key schema:
//
//	verdict:{fingerprint} - JSON-encoded EquivalenceVerdict
type VerdictCache struct {
	rdb *redis.Client
}

// NewVerdictCache creates a VerdictCache backed by the given Client.
func NewVerdictCache(c *Client) *VerdictCache {
	return &VerdictCache{rdb: c.rdb}
}

func verdictKey(fingerprint string) string { return "verdict:" + fingerprint }

// Get retrieves a cached verdict by fingerprint.
// It returns domain.ErrNotFound when no verdict is cached.
func (vc *VerdictCache) Get(ctx context.Context, fingerprint string) (domain.EquivalenceVerdict, error) {
	data, err := vc.rdb.Get(ctx, verdictKey(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EquivalenceVerdict{}, domain.ErrNotFound
		}
		return domain.EquivalenceVerdict{}, fmt.Errorf("redis: get verdict %s: %w", fingerprint, err)
	}

	var v domain.EquivalenceVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("redis: unmarshal verdict %s: %w", fingerprint, err)
	}
	return v, nil
}

// Set stores a verdict with the given TTL.
func (vc *VerdictCache) Set(ctx context.Context, fingerprint string, v domain.EquivalenceVerdict, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal verdict %s: %w", fingerprint, err)
	}
	if err := vc.rdb.Set(ctx, verdictKey(fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set verdict %s: %w", fingerprint, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.VerdictCache = (*VerdictCache)(nil)
