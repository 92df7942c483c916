package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boletera/boletera/internal/pkg/cache"
	"github.com/boletera/boletera/internal/pkg/database"
)

const outcomesKey = "payments:counters:outcomes"

// AddOutcome increments the pending webhook outcome counter for an event in
// Redis. The field is "{eventSlug}:{outcome}"; the flush worker drains it
// into payment_stats.
func AddOutcome(eventSlug, outcome string) error {
	if eventSlug == "" || outcome == "" {
		return nil
	}
	rdb := cache.GetClient()
	if rdb == nil {
		return cache.ErrUnavailable
	}
	ctx := context.Background()
	field := eventSlug + ":" + outcome
	return rdb.HIncrBy(ctx, outcomesKey, field, 1).Err()
}

// FlushAll drains the pending outcome counters to the database.
func FlushAll() error {
	return flushOutcomes()
}

// flushOutcomes drains the Redis hash atomically and applies batched upserts
// to payment_stats. Uses RENAME to a temporary key for atomic drain without
// losing in-flight increments.
func flushOutcomes() error {
	ctx := context.Background()
	rdb := cache.GetClient()
	if rdb == nil {
		// Nothing accumulates without Redis.
		return nil
	}

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", outcomesKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", outcomesKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		// Some Redis libs return redis.Nil; treat as empty
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type row struct {
		eventSlug string
		outcome   string
		inc       int64
	}
	rows := make([]row, 0, len(data))
	for field, v := range data {
		eventSlug, outcome, found := strings.Cut(field, ":")
		if !found || eventSlug == "" || outcome == "" {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		rows = append(rows, row{eventSlug: eventSlug, outcome: outcome, inc: inc})
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].eventSlug != rows[j].eventSlug {
			return rows[i].eventSlug < rows[j].eventSlug
		}
		return rows[i].outcome < rows[j].outcome
	})

	// Compose SQL
	// INSERT INTO payment_stats (...) VALUES (...) ON DUPLICATE KEY UPDATE count = count + VALUES(count)
	var builder strings.Builder
	args := make([]interface{}, 0, len(rows)*3)
	builder.WriteString("INSERT INTO payment_stats (event_slug, outcome, count, created_at, updated_at) VALUES ")
	for i, r := range rows {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("(?, ?, ?, NOW(), NOW())")
		args = append(args, r.eventSlug, r.outcome, r.inc)
	}
	builder.WriteString(" ON DUPLICATE KEY UPDATE count = count + VALUES(count), updated_at = NOW()")

	db := database.GetDB()
	return db.Exec(builder.String(), args...).Error
}
