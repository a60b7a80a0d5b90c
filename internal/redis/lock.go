package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ridepool/internal/lock"
)

const (
	lockKeyPrefix    = "lock:"
	lockPollInterval = 25 * time.Millisecond
	lockReleaseWait  = 2 * time.Second
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis. Each lock is a lease that expires after ttl
// if its holder dies.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLockStore creates a new LockStore. wait bounds how long Lock polls for a busy key.
func NewLockStore(client *redis.Client, ttl, wait time.Duration) *LockStore {
	return &LockStore{client: client, ttl: ttl, wait: wait}
}

// Lock acquires key with SET NX PX, polling until it is free, wait elapses or ctx is done.
func (s *LockStore) Lock(ctx context.Context, key string) (lock.Release, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.New().String()

	waitCtx := ctx
	if s.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.wait)
		defer cancel()
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(waitCtx, redisKey, token, s.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, err
		}
		if ok {
			return s.releaser(redisKey, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, lock.ErrTimeout
			}
			return nil, ctx.Err()
		}
	}
}

func (s *LockStore) releaser(redisKey, token string) lock.Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), lockReleaseWait)
			defer cancel()
			_ = releaseScript.Run(ctx, s.client, []string{redisKey}, token).Err()
		})
	}
}
