// Package redislog is the shared event log for split server/worker
// deployments: the worker appends, API subscribers poll.
package redislog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fiscalia/docindex/internal/models"
)

const (
	keyPrefix = "joblog:"
	maxLen    = 512
	ttl       = 24 * time.Hour
)

// Log stores each job's events in a capped redis list with a TTL, so
// event history never grows without bound. A per-job counter tracks how
// many events were ever appended, which keeps cursor positions absolute
// even after the list drops its oldest entries. The cap is far above
// what one run emits.
type Log struct {
	client *redis.Client
}

func NewLog(client *redis.Client) *Log {
	return &Log{client: client}
}

func key(jobID string) string {
	return keyPrefix + jobID
}

func seqKey(jobID string) string {
	return keyPrefix + jobID + ":seq"
}

func (l *Log) Append(ctx context.Context, jobID string, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key(jobID), data)
	pipe.Incr(ctx, seqKey(jobID))
	pipe.LTrim(ctx, key(jobID), -maxLen, -1)
	pipe.Expire(ctx, key(jobID), ttl)
	pipe.Expire(ctx, seqKey(jobID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Events reads from the absolute position from. Positions below the
// oldest retained event resume at that oldest event, so a slow reader
// skips what was trimmed instead of rereading shifted entries.
func (l *Log) Events(ctx context.Context, jobID string, from int) ([]models.Event, int, error) {
	total, err := l.client.Get(ctx, seqKey(jobID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, from, fmt.Errorf("failed to read event counter: %w", err)
		}
		total = 0
	}

	llen, err := l.client.LLen(ctx, key(jobID)).Result()
	if err != nil {
		return nil, from, fmt.Errorf("failed to read event count: %w", err)
	}

	start := window(from, total, llen)
	if start >= llen {
		return nil, from, nil
	}

	raw, err := l.client.LRange(ctx, key(jobID), start, -1).Result()
	if err != nil {
		return nil, from, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]models.Event, 0, len(raw))
	for _, item := range raw {
		var ev models.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, from, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, ev)
	}

	next := int(total-llen+start) + len(events)
	return events, next, nil
}

// window maps the absolute position from onto a list index, given the
// total number of events ever appended and the llen still retained.
// Positions already trimmed clamp to index 0.
func window(from int, total, llen int64) int64 {
	start := int64(from) - (total - llen)
	if start < 0 {
		start = 0
	}
	return start
}
