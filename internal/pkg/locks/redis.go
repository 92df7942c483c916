package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisLockPrefix = "lock:"

// Lua script: delete the key only if it still carries our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX plus a random token,
// suitable for multi-node deployments sharing one Redis.
type RedisLocker struct {
	client        *redis.Client
	retryInterval time.Duration
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:        client,
		retryInterval: 50 * time.Millisecond,
	}
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string
}

// Acquire polls SET NX until it wins or the wait budget is exhausted.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error) {
	token := uuid.NewString()
	fullKey := redisLockPrefix + key
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &redisLock{locker: l, key: fullKey, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (k *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, k.locker.client, []string{k.key}, k.token).Err()
}
