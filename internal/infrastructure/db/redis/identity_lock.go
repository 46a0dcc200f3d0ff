package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL   = 10 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdentityLock serializes writes per identity across API instances.
// Key format: lock:identity:<user_id>
type IdentityLock struct {
	client redis.Cmdable
	ttl    time.Duration
	log    zerolog.Logger
}

// NewIdentityLock creates an IdentityLock. The ttl bounds how long a crashed
// holder can block others; non-positive selects defaultLockTTL.
func NewIdentityLock(client redis.Cmdable, ttl time.Duration, log zerolog.Logger) *IdentityLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &IdentityLock{client: client, ttl: ttl, log: log}
}

// Lock acquires the lock of userID, polling until it is free or ctx is done.
func (l *IdentityLock) Lock(ctx context.Context, userID int64) (func(), error) {
	key := l.key(userID)
	owner := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(lockRetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, owner) })
	}, nil
}

func (l *IdentityLock) release(key, owner string) {
	// the caller's ctx may already be cancelled; release on our own budget
	relCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := releaseScript.Run(relCtx, l.client, []string{key}, owner).Err(); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("identity lock release failed; it will expire")
	}
}

func (l *IdentityLock) key(userID int64) string {
	return fmt.Sprintf("lock:identity:%d", userID)
}
