package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still carries the holder's
// token, so a holder whose TTL already lapsed cannot release a successor's
// lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SETNX plus a token-checked
// release. Pass runners use it to keep detection passes mutually exclusive
// across replicas.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.rdb}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the named lock for at most ttl and returns a release func.
// The release func is idempotent and works even after the caller's context is
// cancelled. Returns domain.ErrLockHeld when another holder has the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
