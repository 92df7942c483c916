package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/boletera/boletera/internal/pkg/env"
)

// ErrUnavailable is returned by the helpers when Redis could not be
// reached at setup time.
var ErrUnavailable = errors.New("cache unavailable")

var (
	client      *redis.Client
	initialized bool
)

// SetupCache initializes the Redis connection used for webhook dedup
// markers, payment locks and outcome counters. When Redis is unreachable
// the client stays nil so callers can fall back to in-process
// alternatives.
func SetupCache() {
	initialized = true
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	c := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	pong, err := c.Ping(context.Background()).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis: %v", err)
		client = nil
		return
	}
	log.Infof("[Cache] Connected to Redis: %s", pong)
	client = c
}

// GetClient returns the Redis client instance, or nil when Redis was
// unreachable at setup.
func GetClient() *redis.Client {
	if !initialized {
		SetupCache()
	}
	return client
}

// Set stores a value with the given expiration.
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c := GetClient()
	if c == nil {
		return ErrUnavailable
	}
	return c.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a string value by key.
func Get(ctx context.Context, key string) (string, error) {
	c := GetClient()
	if c == nil {
		return "", ErrUnavailable
	}
	return c.Get(ctx, key).Result()
}

// Add stores a value only if the key does not exist yet and reports whether
// it was stored. This is the primitive behind dedup markers.
func Add(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c := GetClient()
	if c == nil {
		return false, ErrUnavailable
	}
	return c.SetNX(ctx, key, value, expiration).Result()
}

// Delete removes a key.
func Delete(ctx context.Context, key string) error {
	c := GetClient()
	if c == nil {
		return ErrUnavailable
	}
	return c.Del(ctx, key).Err()
}
