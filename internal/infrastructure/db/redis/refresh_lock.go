package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 5 * time.Second

// releaseScript deletes the lock only if it is still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RefreshLock serialises refresh-token rotations per user across instances.
// Key format: refresh:lock:<user_id>
type RefreshLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefreshLock creates a RefreshLock whose locks expire after ttl.
func NewRefreshLock(client *redis.Client, ttl time.Duration) *RefreshLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RefreshLock{client: client, ttl: ttl}
}

// Acquire takes the lock of userID. When acquired is false another rotation
// holds it. release is a no-op when the lock was not acquired.
func (l *RefreshLock) Acquire(ctx context.Context, userID string) (func(), bool, error) {
	owner := uuid.NewString()
	key := l.key(userID)

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("refresh lock: %w", err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, owner).Err()
	}
	return release, true, nil
}

func (l *RefreshLock) key(userID string) string {
	return fmt.Sprintf("refresh:lock:%s", userID)
}
