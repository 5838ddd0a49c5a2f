package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token, so a
// holder whose lease already lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every instance using the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	lease  time.Duration
}

// NewRedisLocker returns a locker whose locks expire after lease even if the
// holder crashes before releasing.
func NewRedisLocker(client redis.UniversalClient, lease time.Duration) *RedisLocker {
	return &RedisLocker{client: client, lease: lease}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) (ReleaseFunc, error) {
	token := uuid.NewString()
	err := poll(ctx, wait, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return false, fmt.Errorf("redis lock %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}, nil
}
