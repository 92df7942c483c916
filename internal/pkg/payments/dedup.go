package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupMarker is a fast path in front of the insert-if-absent webhook
// event record. Only cleanly processed events are marked, so a marker hit
// can short-circuit straight to the duplicate response without a DB
// round trip. Losing markers is harmless, the event table stays the source
// of truth.
type DedupMarker interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

const dedupMarkerTTL = 24 * time.Hour

type redisDedup struct {
	client *redis.Client
}

// NewRedisDedup creates a Redis-backed dedup marker.
func NewRedisDedup(client *redis.Client) DedupMarker {
	return &redisDedup{client: client}
}

func dedupKey(eventID string) string {
	return fmt.Sprintf("payments:webhook:seen:%s", eventID)
}

func (d *redisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisDedup) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupKey(eventID), 1, dedupMarkerTTL).Err()
}
